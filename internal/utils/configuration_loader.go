package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	embeddedConfigurationReadErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationFileReadErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplateConstant       = "unable to decode configuration: %w"
	configurationTargetMissingMessageConstant      = "configuration target not provided"
	environmentKeySeparatorConstant                = "_"
	configurationKeySeparatorConstant              = "."
)

// LoadedConfiguration reports metadata about a completed configuration load.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, embedded content, a configuration file, and environment overrides.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	embeddedType          string
}

// NewConfigurationLoader constructs a loader that searches the provided directories for <name>.<type>.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers configuration content applied beneath any file on disk.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte{}, configurationData...)
	loader.embeddedType = configurationType
}

// LoadConfiguration resolves the effective configuration and decodes it into target.
// An explicit configuration file path takes precedence over the search paths.
func (loader *ConfigurationLoader) LoadConfiguration(explicitFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, errors.New(configurationTargetMissingMessageConstant))
	}

	configurationInstance := viper.New()
	for defaultKey, defaultValue := range defaultValues {
		configurationInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedValues, embeddedError := loader.readEmbeddedConfiguration()
		if embeddedError != nil {
			return LoadedConfiguration{}, embeddedError
		}
		if mergeError := configurationInstance.MergeConfigMap(embeddedValues); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplateConstant, mergeError)
		}
	}

	configurationFilePath := strings.TrimSpace(explicitFilePath)
	if len(configurationFilePath) == 0 {
		configurationFilePath = loader.locateConfigurationFile()
	}

	if len(configurationFilePath) > 0 {
		configurationInstance.SetConfigFile(configurationFilePath)
		if mergeError := configurationInstance.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplateConstant, configurationFilePath, mergeError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configurationInstance.SetEnvPrefix(loader.environmentPrefix)
	}
	configurationInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	configurationInstance.AutomaticEnv()

	if decodeError := configurationInstance.Unmarshal(target); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: configurationFilePath}, nil
}

func (loader *ConfigurationLoader) readEmbeddedConfiguration() (map[string]any, error) {
	embeddedInstance := viper.New()
	embeddedType := loader.embeddedType
	if len(embeddedType) == 0 {
		embeddedType = loader.configurationType
	}
	embeddedInstance.SetConfigType(embeddedType)
	if readError := embeddedInstance.ReadConfig(bytes.NewReader(loader.embeddedConfiguration)); readError != nil {
		return nil, fmt.Errorf(embeddedConfigurationReadErrorTemplateConstant, readError)
	}
	return embeddedInstance.AllSettings(), nil
}

func (loader *ConfigurationLoader) locateConfigurationFile() string {
	fileName := loader.configurationName + "." + loader.configurationType
	for _, searchPath := range loader.searchPaths {
		trimmedSearchPath := strings.TrimSpace(searchPath)
		if len(trimmedSearchPath) == 0 {
			continue
		}
		candidatePath := filepath.Join(trimmedSearchPath, fileName)
		fileInfo, statError := os.Stat(candidatePath)
		if statError != nil || fileInfo.IsDir() {
			continue
		}
		return candidatePath
	}
	return ""
}
