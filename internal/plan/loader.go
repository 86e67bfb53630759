package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	experimentsKeyConstant               = "experiments"
	settingsKeyConstant                  = "config"
	experimentNameKeyConstant            = "name"
	experimentScriptKeyConstant          = "script"
	experimentRunsKeyConstant            = "runs"
	planPathRequiredMessageConstant      = "plan path must be provided"
	planNotFoundTemplateConstant         = "Config file not found at %s"
	planReadTemplateConstant             = "unable to read %s: %w"
	planParseTemplateConstant            = "Error parsing %s file: %w"
	settingsKindMessageConstant          = "'config' must be a mapping."
	settingsDecodeTemplateConstant       = "invalid 'config' block: %w"
	experimentKindReasonConstant         = "must be a mapping"
	scriptMissingReasonConstant          = "missing required value"
	scalarRequiredReasonConstant         = "must be a string"
	runsKindReasonConstant               = "must be a list"
	runKindReasonConstant                = "must be a mapping"
	runFieldTemplateConstant             = "runs[%d]"
	runArgumentsFieldTemplateConstant    = "runs[%d].args"
	validationErrorTemplateConstant      = "experiment %d: %s %s"
	validationErrorBareTemplateConstant  = "experiment %d %s"
	unknownSettingsKeysMessageConstant   = "ignoring unknown plan config keys"
	planLoadedMessageConstant            = "plan loaded"
	defaultPlanFormatDescriptionConstant = "config"
	planPathLogFieldConstant             = "plan_path"
	experimentCountLogFieldConstant      = "experiments"
	runCountLogFieldConstant             = "runs"
	unknownSettingsKeysLogFieldConstant  = "keys"
)

var (
	// ErrPlanEmpty reports a plan document with no content.
	ErrPlanEmpty = errors.New("Config file is empty.")
	// ErrExperimentsMissing reports a plan without the experiments key.
	ErrExperimentsMissing = errors.New("Config missing required 'experiments' list.")
	// ErrExperimentsNotList reports an experiments value that is not a sequence.
	ErrExperimentsNotList = errors.New("'experiments' must be a list.")
)

// ValidationError describes a malformed experiment entry.
type ValidationError struct {
	ExperimentIndex int
	Field           string
	Reason          string
}

// Error describes the offending experiment field.
func (validationError ValidationError) Error() string {
	if len(validationError.Field) == 0 {
		return fmt.Sprintf(validationErrorBareTemplateConstant, validationError.ExperimentIndex, validationError.Reason)
	}
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.ExperimentIndex, validationError.Field, validationError.Reason)
}

// Loader reads experiment plans from YAML or JSON documents.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader. A nil logger discards diagnostics.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load parses the plan at path and returns it with the plan's absolute path.
func (loader *Loader) Load(path string) (Plan, string, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return Plan{}, "", errors.New(planPathRequiredMessageConstant)
	}

	absolutePath, absoluteError := filepath.Abs(trimmedPath)
	if absoluteError != nil {
		return Plan{}, "", fmt.Errorf(planReadTemplateConstant, trimmedPath, absoluteError)
	}

	contentBytes, readError := os.ReadFile(absolutePath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return Plan{}, "", fmt.Errorf(planNotFoundTemplateConstant, absolutePath)
		}
		return Plan{}, "", fmt.Errorf(planReadTemplateConstant, absolutePath, readError)
	}

	parsedPlan, unusedSettingsKeys, parseError := parseDocument(contentBytes, describeFormat(absolutePath))
	if parseError != nil {
		return Plan{}, "", parseError
	}

	if len(unusedSettingsKeys) > 0 {
		loader.logger.Warn(
			unknownSettingsKeysMessageConstant,
			zap.String(planPathLogFieldConstant, absolutePath),
			zap.Strings(unknownSettingsKeysLogFieldConstant, unusedSettingsKeys),
		)
	}
	loader.logger.Debug(
		planLoadedMessageConstant,
		zap.String(planPathLogFieldConstant, absolutePath),
		zap.Int(experimentCountLogFieldConstant, len(parsedPlan.Experiments)),
		zap.Int(runCountLogFieldConstant, parsedPlan.RunCount()),
	)

	return parsedPlan, absolutePath, nil
}

// Parse decodes plan content. JSON documents are accepted as YAML.
func Parse(contentBytes []byte, formatDescription string) (Plan, error) {
	parsedPlan, _, parseError := parseDocument(contentBytes, formatDescription)
	return parsedPlan, parseError
}

func parseDocument(contentBytes []byte, formatDescription string) (Plan, []string, error) {
	if len(strings.TrimSpace(formatDescription)) == 0 {
		formatDescription = defaultPlanFormatDescriptionConstant
	}

	var documentNode yaml.Node
	if unmarshalError := yaml.Unmarshal(contentBytes, &documentNode); unmarshalError != nil {
		return Plan{}, nil, fmt.Errorf(planParseTemplateConstant, formatDescription, unmarshalError)
	}

	rootNode := documentRoot(&documentNode)
	if isEmptyNode(rootNode) {
		return Plan{}, nil, ErrPlanEmpty
	}
	if rootNode.Kind != yaml.MappingNode {
		return Plan{}, nil, ErrExperimentsMissing
	}

	experimentsNode := mappingValue(rootNode, experimentsKeyConstant)
	if experimentsNode == nil {
		return Plan{}, nil, ErrExperimentsMissing
	}
	if experimentsNode.Kind != yaml.SequenceNode {
		return Plan{}, nil, ErrExperimentsNotList
	}

	experiments := make([]Experiment, 0, len(experimentsNode.Content))
	for experimentIndex, experimentNode := range experimentsNode.Content {
		experiment, experimentError := decodeExperiment(experimentIndex, resolveAlias(experimentNode))
		if experimentError != nil {
			return Plan{}, nil, experimentError
		}
		experiments = append(experiments, experiment)
	}

	settings, unusedSettingsKeys, settingsError := decodeSettings(mappingValue(rootNode, settingsKeyConstant))
	if settingsError != nil {
		return Plan{}, nil, settingsError
	}

	return Plan{Experiments: experiments, Settings: settings}, unusedSettingsKeys, nil
}

func decodeExperiment(experimentIndex int, experimentNode *yaml.Node) (Experiment, error) {
	if experimentNode == nil || experimentNode.Kind != yaml.MappingNode {
		return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Reason: experimentKindReasonConstant}
	}

	experiment := Experiment{Name: DefaultExperimentName(experimentIndex)}
	if nameNode := mappingValue(experimentNode, experimentNameKeyConstant); nameNode != nil && !isNullNode(nameNode) {
		name, nameAvailable := scalarValue(nameNode)
		if !nameAvailable {
			return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: experimentNameKeyConstant, Reason: scalarRequiredReasonConstant}
		}
		if len(name) > 0 {
			experiment.Name = name
		}
	}

	scriptNode := mappingValue(experimentNode, experimentScriptKeyConstant)
	if scriptNode == nil || isNullNode(scriptNode) {
		return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: experimentScriptKeyConstant, Reason: scriptMissingReasonConstant}
	}
	script, scriptAvailable := scalarValue(scriptNode)
	if !scriptAvailable {
		return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: experimentScriptKeyConstant, Reason: scalarRequiredReasonConstant}
	}
	if len(script) == 0 {
		return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: experimentScriptKeyConstant, Reason: scriptMissingReasonConstant}
	}
	experiment.Script = script

	runsNode := mappingValue(experimentNode, experimentRunsKeyConstant)
	if runsNode == nil || isNullNode(runsNode) {
		experiment.Runs = []RunSpec{}
		return experiment, nil
	}
	if runsNode.Kind != yaml.SequenceNode {
		return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: experimentRunsKeyConstant, Reason: runsKindReasonConstant}
	}

	experiment.Runs = make([]RunSpec, 0, len(runsNode.Content))
	for runIndex, runNode := range runsNode.Content {
		runNode = resolveAlias(runNode)
		if runNode.Kind != yaml.MappingNode {
			return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: fmt.Sprintf(runFieldTemplateConstant, runIndex), Reason: runKindReasonConstant}
		}
		var runSpec RunSpec
		if decodeError := runNode.Decode(&runSpec); decodeError != nil {
			return Experiment{}, ValidationError{ExperimentIndex: experimentIndex, Field: fmt.Sprintf(runArgumentsFieldTemplateConstant, runIndex), Reason: decodeError.Error()}
		}
		experiment.Runs = append(experiment.Runs, runSpec)
	}

	return experiment, nil
}

func decodeSettings(settingsNode *yaml.Node) (Settings, []string, error) {
	if settingsNode == nil || isNullNode(settingsNode) {
		return Settings{}, nil, nil
	}
	settingsNode = resolveAlias(settingsNode)
	if settingsNode.Kind != yaml.MappingNode {
		return Settings{}, nil, errors.New(settingsKindMessageConstant)
	}

	var rawSettings map[string]any
	if decodeError := settingsNode.Decode(&rawSettings); decodeError != nil {
		return Settings{}, nil, fmt.Errorf(settingsDecodeTemplateConstant, decodeError)
	}

	var settings Settings
	var metadata mapstructure.Metadata
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		Metadata:         &metadata,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if decoderError != nil {
		return Settings{}, nil, fmt.Errorf(settingsDecodeTemplateConstant, decoderError)
	}
	if decodeError := decoder.Decode(rawSettings); decodeError != nil {
		return Settings{}, nil, fmt.Errorf(settingsDecodeTemplateConstant, decodeError)
	}

	settings.PythonCommand = strings.TrimSpace(settings.PythonCommand)
	settings.LogDirectory = strings.TrimSpace(settings.LogDirectory)

	unusedKeys := append([]string{}, metadata.Unused...)
	sort.Strings(unusedKeys)
	return settings, unusedKeys, nil
}

func documentRoot(documentNode *yaml.Node) *yaml.Node {
	if documentNode == nil {
		return nil
	}
	if documentNode.Kind == yaml.DocumentNode {
		if len(documentNode.Content) == 0 {
			return nil
		}
		return resolveAlias(documentNode.Content[0])
	}
	return resolveAlias(documentNode)
}

func mappingValue(mappingNode *yaml.Node, key string) *yaml.Node {
	if mappingNode == nil || mappingNode.Kind != yaml.MappingNode {
		return nil
	}
	for contentIndex := 0; contentIndex+1 < len(mappingNode.Content); contentIndex += 2 {
		if mappingNode.Content[contentIndex].Value == key {
			return resolveAlias(mappingNode.Content[contentIndex+1])
		}
	}
	return nil
}

func isNullNode(node *yaml.Node) bool {
	node = resolveAlias(node)
	return node != nil && node.Kind == yaml.ScalarNode && node.Tag == nullTagConstant
}

func isEmptyNode(node *yaml.Node) bool {
	if node == nil || node.Kind == 0 || isNullNode(node) {
		return true
	}
	switch node.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		return len(node.Content) == 0
	default:
		return false
	}
}

func describeFormat(path string) string {
	extension := strings.ToLower(filepath.Ext(path))
	if len(extension) == 0 {
		return defaultPlanFormatDescriptionConstant
	}
	return extension
}
