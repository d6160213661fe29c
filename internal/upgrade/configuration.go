package upgrade

import (
	"fmt"
	"strings"

	"github.com/temirov/ss5upgrade/internal/execshell"
	"github.com/temirov/ss5upgrade/internal/rector"
	pathutils "github.com/temirov/ss5upgrade/internal/utils/path"
)

const (
	defaultComposerCommandConstant      = "composer"
	defaultRectorCommandConstant        = "php vendor/bin/rector"
	configurationKeySeparatorConstant   = "."
	composerCommandKeyConstant          = "composer_command"
	rectorCommandKeyConstant            = "rector_command"
	rectorConfigKeyConstant             = "rector_config"
	sourceDirectoryKeyConstant          = "source_directory"
	environmentFileKeyConstant          = "env_file"
	rulesFileKeyConstant                = "rules_file"
	diffLinesKeyConstant                = "diff_lines"
	colorKeyConstant                    = "color"
	toolInvocationErrorTemplateConstant = "invalid %s: %w"
)

var upgradeConfigurationHomeExpander = pathutils.NewHomeExpander()

// CommandConfiguration captures persisted configuration for the upgrade command.
type CommandConfiguration struct {
	ComposerCommand string `mapstructure:"composer_command"`
	RectorCommand   string `mapstructure:"rector_command"`
	RectorConfig    string `mapstructure:"rector_config"`
	SourceDirectory string `mapstructure:"source_directory"`
	EnvironmentFile string `mapstructure:"env_file"`
	RulesFile       string `mapstructure:"rules_file"`
	DiffLines       int    `mapstructure:"diff_lines"`
	Color           bool   `mapstructure:"color"`
}

// DefaultCommandConfiguration returns baseline configuration values for the upgrade command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		ComposerCommand: defaultComposerCommandConstant,
		RectorCommand:   defaultRectorCommandConstant,
		RectorConfig:    "",
		SourceDirectory: rector.DefaultSourceDirectory,
		EnvironmentFile: DefaultEnvironmentFile,
		RulesFile:       "",
		DiffLines:       DefaultDiffMaxLines,
		Color:           true,
	}
}

// DefaultConfigurationValues produces Viper defaults for the upgrade command under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + composerCommandKeyConstant: defaults.ComposerCommand,
		rootKey + configurationKeySeparatorConstant + rectorCommandKeyConstant:   defaults.RectorCommand,
		rootKey + configurationKeySeparatorConstant + rectorConfigKeyConstant:    defaults.RectorConfig,
		rootKey + configurationKeySeparatorConstant + sourceDirectoryKeyConstant: defaults.SourceDirectory,
		rootKey + configurationKeySeparatorConstant + environmentFileKeyConstant: defaults.EnvironmentFile,
		rootKey + configurationKeySeparatorConstant + rulesFileKeyConstant:       defaults.RulesFile,
		rootKey + configurationKeySeparatorConstant + diffLinesKeyConstant:       defaults.DiffLines,
		rootKey + configurationKeySeparatorConstant + colorKeyConstant:           defaults.Color,
	}
}

// Sanitize trims configured values, expands home shortcuts in file paths,
// and restores defaults for values left empty.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.ComposerCommand = valueOrDefault(configuration.ComposerCommand, defaults.ComposerCommand)
	sanitized.RectorCommand = valueOrDefault(configuration.RectorCommand, defaults.RectorCommand)
	sanitized.SourceDirectory = valueOrDefault(configuration.SourceDirectory, defaults.SourceDirectory)
	sanitized.EnvironmentFile = valueOrDefault(configuration.EnvironmentFile, defaults.EnvironmentFile)
	sanitized.RectorConfig = upgradeConfigurationHomeExpander.Expand(strings.TrimSpace(configuration.RectorConfig))
	sanitized.RulesFile = upgradeConfigurationHomeExpander.Expand(strings.TrimSpace(configuration.RulesFile))
	if sanitized.DiffLines <= 0 {
		sanitized.DiffLines = defaults.DiffLines
	}

	return sanitized
}

// ToolInvocations parses the configured Composer and Rector command lines.
func (configuration CommandConfiguration) ToolInvocations() (execshell.ToolInvocations, error) {
	composerInvocation, composerError := execshell.ParseToolInvocation(configuration.ComposerCommand)
	if composerError != nil {
		return nil, fmt.Errorf(toolInvocationErrorTemplateConstant, composerCommandKeyConstant, composerError)
	}
	rectorInvocation, rectorError := execshell.ParseToolInvocation(configuration.RectorCommand)
	if rectorError != nil {
		return nil, fmt.Errorf(toolInvocationErrorTemplateConstant, rectorCommandKeyConstant, rectorError)
	}
	return execshell.ToolInvocations{
		execshell.ToolComposer: composerInvocation,
		execshell.ToolRector:   rectorInvocation,
	}, nil
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
