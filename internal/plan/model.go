package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

const (
	defaultExperimentNameTemplateConstant = "exp_%d"
	argumentsKindMessageConstant          = "must be a string or a list of strings"
	argumentsTokenKindTemplateConstant    = "token %d must be a scalar value"
	nullTagConstant                       = "!!null"
)

// Plan is the ordered experiment queue together with its global settings.
type Plan struct {
	Experiments []Experiment
	Settings    Settings
}

// Experiment groups the parameterized runs of one script.
type Experiment struct {
	Name   string
	Script string
	Runs   []RunSpec
}

// RunSpec is one concrete invocation of an experiment's script.
type RunSpec struct {
	Arguments Arguments `yaml:"args" json:"args"`
}

// Settings holds the optional plan-level config block. Empty fields mean "not set".
type Settings struct {
	PythonCommand string            `mapstructure:"python_cmd"`
	LogDirectory  string            `mapstructure:"log_dir"`
	Environment   map[string]string `mapstructure:"env"`
}

// Arguments is the canonical token sequence of a run. Plans may spell it as a
// whitespace-separated string or as a list of tokens; both normalize here.
type Arguments struct {
	tokens []string
	source string
}

// ParseArguments splits an argument string on whitespace. Quotes and
// backslashes are kept verbatim inside their tokens.
func ParseArguments(text string) Arguments {
	return Arguments{tokens: strings.Fields(text), source: strings.TrimSpace(text)}
}

// NewArguments wraps an explicit token list.
func NewArguments(tokens ...string) Arguments {
	return Arguments{tokens: append([]string{}, tokens...), source: shellquote.Join(tokens...)}
}

// Tokens returns a copy of the argument tokens.
func (arguments Arguments) Tokens() []string {
	return append([]string{}, arguments.tokens...)
}

// String renders the arguments as written in the plan.
func (arguments Arguments) String() string {
	return arguments.source
}

// UnmarshalYAML accepts a scalar string or a sequence of scalars.
func (arguments *Arguments) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == nullTagConstant {
			*arguments = Arguments{}
			return nil
		}
		*arguments = ParseArguments(node.Value)
		return nil
	case yaml.SequenceNode:
		tokens := make([]string, 0, len(node.Content))
		for tokenIndex, tokenNode := range node.Content {
			tokenNode = resolveAlias(tokenNode)
			if tokenNode.Kind != yaml.ScalarNode {
				return fmt.Errorf(argumentsTokenKindTemplateConstant, tokenIndex)
			}
			tokens = append(tokens, tokenNode.Value)
		}
		*arguments = NewArguments(tokens...)
		return nil
	default:
		return errors.New(argumentsKindMessageConstant)
	}
}

// DefaultExperimentName is the name given to an experiment declared without one.
func DefaultExperimentName(experimentIndex int) string {
	return fmt.Sprintf(defaultExperimentNameTemplateConstant, experimentIndex)
}

// RunCount totals the runs declared across all experiments.
func (plan Plan) RunCount() int {
	total := 0
	for _, experiment := range plan.Experiments {
		total += len(experiment.Runs)
	}
	return total
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func scalarValue(node *yaml.Node) (string, bool) {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag == nullTagConstant {
		return "", false
	}
	return strings.TrimSpace(node.Value), true
}
