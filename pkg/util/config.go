package util

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/viper"
)

// ReadConfig loads the optional config file at path into viper. An empty path only installs
// the defaults and BIKEGRAPH_* environment overrides.
func ReadConfig(path string) error {
	SetConfigDefaults()

	viper.SetEnvPrefix("BIKEGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)

	err := viper.ReadInConfig()
	if err != nil {
		return WrapErrorf(err, ErrIO, "fatal error config file %s", path)
	}
	return nil
}

func SetConfigDefaults() {
	viper.SetDefault("workers", runtime.NumCPU())
	viper.SetDefault("pbf_procs", runtime.NumCPU())
	viper.SetDefault("stream_buffer", 1024)
	viper.SetDefault("graph.compress", false)

	viper.SetDefault("log.verbose", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size", 100) // megabytes
	viper.SetDefault("log.max_age", 28)   // days
}

// ValidateStruct runs the validate tags of s and returns one error listing every violated
// field in plain english.
func ValidateStruct(s interface{}) error {
	validate := validator.New()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return WrapErrorf(err, ErrBadParamInput, "invalid configuration")
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return NewErrorf(ErrBadParamInput, "validation error: %s", strings.Join(msgs, "; "))
}

// DescribeConfig is logged once at startup.
func DescribeConfig() string {
	return fmt.Sprintf("workers=%d pbf_procs=%d stream_buffer=%d compress=%t",
		viper.GetInt("workers"), viper.GetInt("pbf_procs"), viper.GetInt("stream_buffer"),
		viper.GetBool("graph.compress"))
}
