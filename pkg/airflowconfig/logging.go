/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package airflowconfig

import (
	"fmt"
	"reflect"

	"github.com/imdario/mergo"
	"github.com/samber/lo"
)

type Variant string

const (
	// VariantFargate keeps the file task handler next to stdout so task logs stay visible in the UI
	VariantFargate Variant = "fargate"
	VariantEC2     Variant = "ec2"
)

const (
	LogFormat        = "[%(asctime)s] {%(filename)s:%(lineno)d} %(levelname)s - %(message)s"
	ColoredLogFormat = "[%(blue)s%(asctime)s%(reset)s] {%(blue)s%(filename)s:%(reset)s%(lineno)d} %(log_color)s%(levelname)s%(reset)s - %(log_color)s%(message)s%(reset)s"
	BaseLogFolder    = "/opt/airflow/logs"
	StdoutStream     = "ext://sys.stdout"
)

// LoggingConfig is a Python logging dictConfig as consumed by Airflow's logging_config_class
type LoggingConfig struct {
	Version                int                   `json:"version" yaml:"version" toml:"version"`
	DisableExistingLoggers bool                  `json:"disable_existing_loggers" yaml:"disable_existing_loggers" toml:"disable_existing_loggers"`
	Formatters             map[string]*Formatter `json:"formatters" yaml:"formatters" toml:"formatters"`
	Filters                map[string]*Filter    `json:"filters" yaml:"filters" toml:"filters"`
	Handlers               map[string]*Handler   `json:"handlers" yaml:"handlers" toml:"handlers"`
	Loggers                map[string]*Logger    `json:"loggers" yaml:"loggers" toml:"loggers"`
	Root                   *Logger               `json:"root" yaml:"root" toml:"root"`
}

type Formatter struct {
	Format string `json:"format" yaml:"format" toml:"format"`
	Class  string `json:"class" yaml:"class" toml:"class"`
}

type Filter struct {
	// Factory is the dotted path of the filter callable, the "()" key of dictConfig
	Factory string `json:"()" yaml:"()" toml:"()"`
}

type Handler struct {
	Class            string   `json:"class" yaml:"class" toml:"class"`
	Formatter        string   `json:"formatter" yaml:"formatter" toml:"formatter"`
	Stream           string   `json:"stream,omitempty" yaml:"stream,omitempty" toml:"stream,omitempty"`
	BaseLogFolder    string   `json:"base_log_folder,omitempty" yaml:"base_log_folder,omitempty" toml:"base_log_folder,omitempty"`
	FilenameTemplate string   `json:"filename_template,omitempty" yaml:"filename_template,omitempty" toml:"filename_template,omitempty"`
	Filters          []string `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
}

type Logger struct {
	Handlers  []string `json:"handlers" yaml:"handlers" toml:"handlers"`
	Level     string   `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Propagate *bool    `json:"propagate,omitempty" yaml:"propagate,omitempty" toml:"propagate,omitempty"`
	Filters   []string `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
}

// DefaultLoggingConfig mirrors Airflow's DEFAULT_LOGGING_CONFIG with stock settings
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Version:                1,
		DisableExistingLoggers: false,
		Formatters: map[string]*Formatter{
			"airflow":          {Format: LogFormat, Class: "airflow.utils.log.timezone_aware.TimezoneAware"},
			"airflow_coloured": {Format: ColoredLogFormat, Class: "airflow.utils.log.colored_log.CustomTTYColoredFormatter"},
		},
		Filters: map[string]*Filter{
			"mask_secrets": {Factory: "airflow.utils.log.secrets_masker.SecretsMasker"},
		},
		Handlers: map[string]*Handler{
			"console": {
				Class:     "airflow.utils.log.logging_mixin.RedirectStdHandler",
				Formatter: "airflow_coloured",
				Stream:    "sys.stdout",
				Filters:   []string{"mask_secrets"},
			},
			"task": {
				Class:         "airflow.utils.log.file_task_handler.FileTaskHandler",
				Formatter:     "airflow",
				BaseLogFolder: BaseLogFolder,
				Filters:       []string{"mask_secrets"},
			},
			"processor": {
				Class:            "airflow.utils.log.file_processor_handler.FileProcessorHandler",
				Formatter:        "airflow",
				BaseLogFolder:    BaseLogFolder + "/scheduler",
				FilenameTemplate: "{{ filename }}.log",
				Filters:          []string{"mask_secrets"},
			},
		},
		Loggers: map[string]*Logger{
			"airflow.processor": {Handlers: []string{"processor"}, Level: "INFO", Propagate: lo.ToPtr(false)},
			"airflow.task":      {Handlers: []string{"task"}, Level: "INFO", Propagate: lo.ToPtr(false), Filters: []string{"mask_secrets"}},
			"flask_appbuilder":  {Handlers: []string{"console"}, Level: "WARNING", Propagate: lo.ToPtr(true)},
		},
		Root: &Logger{Handlers: []string{"console"}, Level: "INFO", Filters: []string{"mask_secrets"}},
	}
}

// StdoutLoggingConfig routes the processor, task and flask_appbuilder loggers to a plain stdout
// stream so the container log driver collects them.
func StdoutLoggingConfig(variant Variant) (LoggingConfig, error) {
	var taskHandlers []string
	switch variant {
	case VariantFargate:
		taskHandlers = []string{"stdout", "task"}
	case VariantEC2:
		taskHandlers = []string{"stdout"}
	default:
		return LoggingConfig{}, fmt.Errorf("unsupported variant %q, must be one of [%s, %s]", variant, VariantFargate, VariantEC2)
	}
	cfg := DefaultLoggingConfig()
	if err := Merge(&cfg, LoggingConfig{
		Handlers: map[string]*Handler{
			"stdout": {
				Class:     "logging.StreamHandler",
				Formatter: "airflow",
				Stream:    StdoutStream,
				Filters:   []string{"mask_secrets"},
			},
		},
		Loggers: map[string]*Logger{
			"airflow.processor": {Handlers: []string{"stdout"}},
			"airflow.task":      {Handlers: taskHandlers},
			"flask_appbuilder":  {Handlers: []string{"stdout"}},
		},
	}); err != nil {
		return LoggingConfig{}, err
	}
	return cfg, nil
}

// Merge applies the non-empty fields of overrides onto dst. Map entries merge field by field,
// and a set *bool replaces the destination even when it points to false.
func Merge[T any](dst *T, overrides T) error {
	if err := mergo.Merge(dst, overrides, mergo.WithOverride, mergo.WithTransformers(boolPtrTransformer{})); err != nil {
		return fmt.Errorf("merging %T overrides, %w", overrides, err)
	}
	return nil
}

type boolPtrTransformer struct{}

func (boolPtrTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*bool)(nil)) {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.CanSet() && !src.IsNil() {
			dst.Set(src)
		}
		return nil
	}
}
