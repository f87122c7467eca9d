package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(sinkStructLevelValidation, SinkConfig{})
	return v
}

// sinkStructLevelValidation requires brokers and a topic when Kafka is the
// selected sink.
func sinkStructLevelValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(SinkConfig)
	if c.Type != SinkKafka {
		return
	}
	if len(c.Kafka.Brokers) == 0 {
		sl.ReportError(c.Kafka.Brokers, "Kafka.Brokers", "Brokers", "required", "")
	}
	if c.Kafka.Topic == "" {
		sl.ReportError(c.Kafka.Topic, "Kafka.Topic", "Topic", "required", "")
	}
}

func Validate(config Config) error {
	return validate.Struct(config)
}

func LogValidationErrors(err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			log.Errorf("ConfigError: %v", err)
		}
		return
	}

	for _, err := range verrs {
		fieldName := stripPrefix(err.Namespace())
		tag := err.Tag()
		switch tag {
		case "required":
			log.Errorf("ConfigError: Field %s is required but was not found", fieldName)
		default:
			log.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), tag)
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
