// Package flagx binds cobra flags to tagged structs, the way gin binds requests.
//
//	type InvalidateOptions struct {
//	    Tenant string   `flag:"tenant,t" usage:"tenant id" required:"true"`
//	    Tags   []string `flag:"tag" usage:"tag to drop (repeatable)"`
//	}
//
//	var opts InvalidateOptions
//	flagx.BindFlags(cmd, &opts)   // while building the command
//	flagx.ParseFlags(cmd, &opts)  // inside RunE
//
// Tags: flag (name[,short]), usage, default, required.
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ParseFlags copies flag values into target. Inherited persistent flags are visible
// once cobra has parsed the command line.
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}
	fs := cmd.Flags()

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		name, _, ok := flagName(t.Field(i))
		if !ok {
			continue
		}
		if err := setFieldValue(fs, field, name); err != nil {
			return fmt.Errorf("parse field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

// BindFlags registers one local flag per tagged field
func BindFlags(cmd *cobra.Command, target interface{}) error {
	return bind(cmd.Flags(), target, cmd.MarkFlagRequired)
}

// BindPersistentFlags registers flags every subcommand inherits
func BindPersistentFlags(cmd *cobra.Command, target interface{}) error {
	return bind(cmd.PersistentFlags(), target, cmd.MarkPersistentFlagRequired)
}

func bind(fs *pflag.FlagSet, target interface{}, markRequired func(string) error) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		name, short, ok := flagName(field)
		if !ok {
			continue
		}

		usage := field.Tag.Get("usage")
		def := field.Tag.Get("default")
		if err := registerFlag(fs, field.Type, name, short, usage, def); err != nil {
			return fmt.Errorf("bind field %s: %w", field.Name, err)
		}

		if field.Tag.Get("required") == "true" {
			if err := markRequired(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func structValue(target interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("target must be a pointer to struct")
	}
	return v.Elem(), nil
}

// flagName splits `flag:"name,n"`
func flagName(field reflect.StructField) (name, short string, ok bool) {
	tag := field.Tag.Get("flag")
	if tag == "" || tag == "-" {
		return "", "", false
	}
	parts := strings.SplitN(tag, ",", 2)
	name = parts[0]
	if len(parts) > 1 {
		short = parts[1]
	}
	return name, short, true
}

func setFieldValue(fs *pflag.FlagSet, field reflect.Value, name string) error {
	if fs.Lookup(name) == nil {
		return fmt.Errorf("flag --%s not defined", name)
	}

	if field.Type() == durationType {
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		field.SetString(val)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := fs.GetUint(name)
		if err != nil {
			return err
		}
		field.SetUint(uint64(val))

	case reflect.Bool:
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(val)

	case reflect.Float32, reflect.Float64:
		val, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		field.SetFloat(val)

	case reflect.Slice:
		return setSliceValue(fs, field, name)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

func setSliceValue(fs *pflag.FlagSet, field reflect.Value, name string) error {
	switch field.Type().Elem().Kind() {
	case reflect.String:
		val, err := fs.GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))

	case reflect.Int:
		val, err := fs.GetIntSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))

	default:
		return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
	}
	return nil
}

func registerFlag(fs *pflag.FlagSet, typ reflect.Type, name, short, usage, def string) error {
	if typ == durationType {
		d := time.Duration(0)
		if def != "" {
			parsed, err := time.ParseDuration(def)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			d = parsed
		}
		fs.DurationP(name, short, d, usage)
		return nil
	}

	switch typ.Kind() {
	case reflect.String:
		fs.StringP(name, short, def, usage)

	case reflect.Int:
		n := 0
		if def != "" {
			parsed, err := strconv.Atoi(def)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			n = parsed
		}
		fs.IntP(name, short, n, usage)

	case reflect.Bool:
		b := false
		if def != "" {
			parsed, err := strconv.ParseBool(def)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			b = parsed
		}
		fs.BoolP(name, short, b, usage)

	case reflect.Float64:
		f := 0.0
		if def != "" {
			parsed, err := strconv.ParseFloat(def, 64)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			f = parsed
		}
		fs.Float64P(name, short, f, usage)

	case reflect.Slice:
		switch typ.Elem().Kind() {
		case reflect.String:
			fs.StringSliceP(name, short, nil, usage)
		case reflect.Int:
			fs.IntSliceP(name, short, nil, usage)
		default:
			return fmt.Errorf("unsupported slice element type: %s", typ.Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", typ.Kind())
	}
	return nil
}
