package upgrade_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ss5upgrade/internal/execshell"
	"github.com/temirov/ss5upgrade/internal/substitution"
	"github.com/temirov/ss5upgrade/internal/upgrade"
	pathutils "github.com/temirov/ss5upgrade/internal/utils/path"
)

const (
	testWorkingDirectoryConstant = "/srv"
	testRulesFilePathConstant    = "/etc/ss5upgrade/rules.yaml"
	testRulesDocumentConstant    = "rules:\n  legacy/module:\n    action: drop\npins:\n  - name: php\n    constraint: \"^8.2\"\n"
)

type stubToolExecutor struct{}

func (stubToolExecutor) ExecuteComposer(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, nil
}

func (stubToolExecutor) ExecuteRector(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, nil
}

type recordingUpgradeExecutor struct {
	dependencies upgrade.ServiceDependencies
	options      []upgrade.Options
	result       upgrade.Result
	failure      error
}

func (executor *recordingUpgradeExecutor) Execute(_ context.Context, options upgrade.Options) (upgrade.Result, error) {
	executor.options = append(executor.options, options)
	return executor.result, executor.failure
}

func newTestCommandBuilder(executor *recordingUpgradeExecutor, fileSystem afero.Fs, logger *zap.Logger, configuration upgrade.CommandConfiguration) *upgrade.CommandBuilder {
	return &upgrade.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return logger },
		Executor:       stubToolExecutor{},
		FileSystem:     fileSystem,
		ProjectPathResolver: pathutils.NewProjectPathResolverWithProviders(nil, func() (string, error) {
			return testWorkingDirectoryConstant, nil
		}),
		ServiceProvider: func(dependencies upgrade.ServiceDependencies) (upgrade.UpgradeExecutor, error) {
			executor.dependencies = dependencies
			return executor, nil
		},
		ConfigurationProvider: func() upgrade.CommandConfiguration { return configuration },
	}
}

func TestUpgradeCommandResolvesOptions(testInstance *testing.T) {
	configured := upgrade.DefaultCommandConfiguration()
	configured.SourceDirectory = "mysite/code"
	configured.EnvironmentFile = ".env.production"
	configured.DiffLines = 12

	testCases := []struct {
		name            string
		configuration   upgrade.CommandConfiguration
		arguments       []string
		expectedOptions upgrade.Options
	}{
		{
			name:          "defaults",
			configuration: upgrade.DefaultCommandConfiguration(),
			arguments:     []string{"site"},
			expectedOptions: upgrade.Options{
				ProjectPath:     "/srv/site",
				SourceDirectory: "app/src",
				EnvironmentFile: ".env",
				DiffMaxLines:    40,
			},
		},
		{
			name:          "configuration_values",
			configuration: configured,
			arguments:     []string{"/var/www/site"},
			expectedOptions: upgrade.Options{
				ProjectPath:     "/var/www/site",
				SourceDirectory: "mysite/code",
				EnvironmentFile: ".env.production",
				DiffMaxLines:    12,
			},
		},
		{
			name:          "flags_override_configuration",
			configuration: configured,
			arguments:     []string{"site", "--source-dir", "src", "--env-file", ".env.local", "--diff-lines", "5", "--rector-config", "rector.php", "--color=no"},
			expectedOptions: upgrade.Options{
				ProjectPath:      "/srv/site",
				SourceDirectory:  "src",
				RectorConfigPath: "rector.php",
				EnvironmentFile:  ".env.local",
				DiffMaxLines:     5,
			},
		},
		{
			name:          "non_positive_diff_lines_restore_default",
			configuration: upgrade.DefaultCommandConfiguration(),
			arguments:     []string{"site", "--diff-lines", "0"},
			expectedOptions: upgrade.Options{
				ProjectPath:     "/srv/site",
				SourceDirectory: "app/src",
				EnvironmentFile: ".env",
				DiffMaxLines:    40,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingUpgradeExecutor{}
			builder := newTestCommandBuilder(executor, afero.NewMemMapFs(), zap.NewNop(), testCase.configuration)
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			outputBuffer := &bytes.Buffer{}
			command.SetOut(outputBuffer)
			command.SetArgs(testCase.arguments)
			command.SetContext(context.Background())
			require.NoError(testInstance, command.Execute())

			require.Equal(testInstance, []upgrade.Options{testCase.expectedOptions}, executor.options)
			require.Contains(testInstance, outputBuffer.String(), "[OK] "+testCase.expectedOptions.ProjectPath+" now targets Silverstripe 5")

			require.NotNil(testInstance, executor.dependencies.ManifestStore)
			require.NotNil(testInstance, executor.dependencies.Substitutions)
			require.NotNil(testInstance, executor.dependencies.Installer)
			require.NotNil(testInstance, executor.dependencies.EnvironmentEditor)
			require.NotNil(testInstance, executor.dependencies.SourceRewriter)
			require.NotNil(testInstance, executor.dependencies.Reporter)
		})
	}
}

func TestUpgradeCommandRequiresProjectPath(testInstance *testing.T) {
	executor := &recordingUpgradeExecutor{}
	command, buildError := newTestCommandBuilder(executor, afero.NewMemMapFs(), zap.NewNop(), upgrade.DefaultCommandConfiguration()).Build()
	require.NoError(testInstance, buildError)

	command.SetArgs([]string{})
	command.SetContext(context.Background())
	require.Error(testInstance, command.Execute())
	require.Empty(testInstance, executor.options)
}

func TestUpgradeCommandLoadsRulesFile(testInstance *testing.T) {
	testCases := []struct {
		name           string
		storedPath     string
		rulesFileValue string
	}{
		{name: "absolute_path", storedPath: testRulesFilePathConstant, rulesFileValue: testRulesFilePathConstant},
		{name: "project_relative_path", storedPath: "/srv/site/upgrade/rules.yaml", rulesFileValue: "upgrade/rules.yaml"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			require.NoError(testInstance, afero.WriteFile(fileSystem, testCase.storedPath, []byte(testRulesDocumentConstant), 0o644))

			executor := &recordingUpgradeExecutor{}
			command, buildError := newTestCommandBuilder(executor, fileSystem, zap.NewNop(), upgrade.DefaultCommandConfiguration()).Build()
			require.NoError(testInstance, buildError)

			command.SetOut(&bytes.Buffer{})
			command.SetArgs([]string{"site", "--rules-file", testCase.rulesFileValue})
			command.SetContext(context.Background())
			require.NoError(testInstance, command.Execute())

			table, isTable := executor.dependencies.Substitutions.(*substitution.Table)
			require.True(testInstance, isTable)
			require.Equal(testInstance, substitution.ActionDrop, table.Rule("legacy/module").Action)
			require.Equal(testInstance, "^8.2", table.Pins()[0].ConstraintValue())
		})
	}
}

func TestUpgradeCommandRejectsMissingRulesFile(testInstance *testing.T) {
	executor := &recordingUpgradeExecutor{}
	command, buildError := newTestCommandBuilder(executor, afero.NewMemMapFs(), zap.NewNop(), upgrade.DefaultCommandConfiguration()).Build()
	require.NoError(testInstance, buildError)

	command.SetArgs([]string{"site", "--rules-file", testRulesFilePathConstant})
	command.SetContext(context.Background())
	require.Error(testInstance, command.Execute())
	require.Empty(testInstance, executor.options)
}

func TestUpgradeCommandReportsFailures(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	executor := &recordingUpgradeExecutor{
		failure: upgrade.StageError{Stage: upgrade.StageInstallAll, Cause: upgrade.UnresolvablePackageError{PackageName: "silverstripe/recipe-cms"}},
	}
	command, buildError := newTestCommandBuilder(executor, afero.NewMemMapFs(), zap.New(observerCore), upgrade.DefaultCommandConfiguration()).Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{"/srv/site"})
	command.SetContext(context.Background())
	executionError := command.Execute()

	require.ErrorIs(testInstance, executionError, upgrade.ErrUnresolvablePackage)
	require.EqualError(testInstance, executionError, "upgrade of /srv/site failed: install-all: unresolvable package silverstripe/recipe-cms")
	require.NotContains(testInstance, outputBuffer.String(), "[OK]")

	failureLogs := observedLogs.FilterMessage("Silverstripe 5 upgrade failed").All()
	require.Len(testInstance, failureLogs, 1)
	require.Equal(testInstance, "install-all", failureLogs[0].ContextMap()["failed_stage"])
}

func TestUpgradeCommandLogsSummary(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.InfoLevel)
	executor := &recordingUpgradeExecutor{
		result: upgrade.Result{
			Packages: []upgrade.InstalledPackage{
				{Name: "silverstripe/recipe-cms"},
				{Name: "colymba/gridfield-bulk-editing-tools", UsedFallback: true},
			},
			EnvironmentFound:   true,
			EnvironmentPatched: true,
		},
	}
	command, buildError := newTestCommandBuilder(executor, afero.NewMemMapFs(), zap.New(observerCore), upgrade.DefaultCommandConfiguration()).Build()
	require.NoError(testInstance, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetArgs([]string{"/srv/site"})
	command.SetContext(context.Background())
	require.NoError(testInstance, command.Execute())

	summaryLogs := observedLogs.FilterMessage("Silverstripe 5 upgrade completed").All()
	require.Len(testInstance, summaryLogs, 1)
	contextMap := summaryLogs[0].ContextMap()
	require.Equal(testInstance, true, contextMap["environment_patched"])
	require.Equal(testInstance, []any{"colymba/gridfield-bulk-editing-tools"}, contextMap["fallback_packages"])
}
