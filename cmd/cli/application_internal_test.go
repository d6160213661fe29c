package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: debug\n  log_format: structured\ntools:\n  upgrade:\n    composer_command: \" php composer.phar \"\n    source_directory: src\n"
)

func newIsolatedApplication(testInstance *testing.T) *Application {
	testInstance.Helper()
	testInstance.Setenv(configurationSearchPathEnvironmentName, testInstance.TempDir())
	return NewApplication()
}

func TestNewApplicationRegistersUpgradeCommand(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)

	upgradeCommand, remainingArguments, findError := application.rootCommand.Find([]string{"upgrade", "/srv/site"})
	require.NoError(testInstance, findError)
	require.Equal(testInstance, "upgrade", upgradeCommand.Name())
	require.Equal(testInstance, []string{"/srv/site"}, remainingArguments)

	for _, flagName := range []string{configFileFlagNameConstant, logLevelFlagNameConstant, logFormatFlagNameConstant, versionFlagNameConstant} {
		require.NotNil(testInstance, application.rootCommand.PersistentFlags().Lookup(flagName), flagName)
	}
}

func TestInitializeConfigurationSources(testInstance *testing.T) {
	testCases := []struct {
		name                    string
		writeConfigurationFile  bool
		environment             map[string]string
		flagValues              map[string]string
		expectedLogLevel        string
		expectedLogFormat       string
		expectedComposerCommand string
		expectedSourceDirectory string
		expectedDiffLines       int
	}{
		{
			name:                    "embedded_defaults",
			expectedLogLevel:        "info",
			expectedLogFormat:       "console",
			expectedComposerCommand: "composer",
			expectedSourceDirectory: "app/src",
			expectedDiffLines:       40,
		},
		{
			name:                    "configuration_file",
			writeConfigurationFile:  true,
			expectedLogLevel:        "debug",
			expectedLogFormat:       "structured",
			expectedComposerCommand: "php composer.phar",
			expectedSourceDirectory: "src",
			expectedDiffLines:       40,
		},
		{
			name:                   "environment_overrides_file",
			writeConfigurationFile: true,
			environment: map[string]string{
				"SS5UPGRADE_TOOLS_UPGRADE_DIFF_LINES":       "12",
				"SS5UPGRADE_TOOLS_UPGRADE_SOURCE_DIRECTORY": "code",
			},
			expectedLogLevel:        "debug",
			expectedLogFormat:       "structured",
			expectedComposerCommand: "php composer.phar",
			expectedSourceDirectory: "code",
			expectedDiffLines:       12,
		},
		{
			name:                   "flags_override_file",
			writeConfigurationFile: true,
			flagValues: map[string]string{
				logLevelFlagNameConstant:  "warn",
				logFormatFlagNameConstant: "console",
			},
			expectedLogLevel:        "warn",
			expectedLogFormat:       "console",
			expectedComposerCommand: "php composer.phar",
			expectedSourceDirectory: "src",
			expectedDiffLines:       40,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}
			application := newIsolatedApplication(testInstance)

			expectedConfigurationPath := ""
			if testCase.writeConfigurationFile {
				expectedConfigurationPath = filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
				require.NoError(testInstance, os.WriteFile(expectedConfigurationPath, []byte(testConfigurationContentConstant), 0o600))
				require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(configFileFlagNameConstant, expectedConfigurationPath))
			}
			for flagName, flagValue := range testCase.flagValues {
				require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(flagName, flagValue))
			}

			rootCommand := application.rootCommand
			rootCommand.SetContext(context.Background())
			require.NoError(testInstance, application.initializeConfiguration(rootCommand))

			require.Equal(testInstance, testCase.expectedLogLevel, application.configuration.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedLogFormat, application.configuration.Common.LogFormat)
			require.Equal(testInstance, testCase.expectedComposerCommand, application.configuration.Tools.Upgrade.ComposerCommand)
			require.Equal(testInstance, testCase.expectedSourceDirectory, application.configuration.Tools.Upgrade.SourceDirectory)
			require.Equal(testInstance, testCase.expectedDiffLines, application.configuration.Tools.Upgrade.DiffLines)
			require.Equal(testInstance, testCase.expectedLogFormat == "console", application.humanReadableLoggingEnabled())

			logLevel, logLevelAttached := application.commandContextAccessor.LogLevel(rootCommand.Context())
			require.True(testInstance, logLevelAttached)
			require.Equal(testInstance, testCase.expectedLogLevel, logLevel)

			configurationPath, configurationPathAttached := application.commandContextAccessor.ConfigurationFilePath(rootCommand.Context())
			require.True(testInstance, configurationPathAttached)
			require.Equal(testInstance, expectedConfigurationPath, configurationPath)
		})
	}
}

func TestInitializeConfigurationRejectsUnsupportedLogLevel(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.ErrorContains(testInstance, initializationError, "unable to create logger")
}

func TestConfigurationSearchPaths(testInstance *testing.T) {
	testInstance.Setenv(configurationSearchPathEnvironmentName, "")
	defaultPaths := configurationSearchPaths()
	require.Equal(testInstance, defaultConfigurationSearchPathConstant, defaultPaths[0])
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		require.Equal(testInstance, []string{".", filepath.Join(userConfigurationDirectory, "ss5upgrade")}, defaultPaths)
	}

	testInstance.Setenv(configurationSearchPathEnvironmentName, " /etc/ss5upgrade "+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+"/opt/ss5upgrade")
	require.Equal(testInstance, []string{"/etc/ss5upgrade", "/opt/ss5upgrade"}, configurationSearchPaths())
}
