// Package env contains a function to load configuration from environment.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Unmarshaler can be implemented to override the unmarshaling process.
type Unmarshaler interface {
	UnmarshalEnv(prefix string, v string) error
}

func loadField(env map[string]string, key string, fv reflect.Value) error {
	ev, ok := env[key]

	if u, isU := fv.Addr().Interface().(Unmarshaler); isU {
		if !ok {
			return nil
		}
		err := u.UnmarshalEnv(key, ev)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	if fv.Kind() == reflect.Struct {
		return loadStruct(env, key, fv)
	}

	if !ok {
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(ev)

	case reflect.Int, reflect.Int64:
		iv, err := strconv.ParseInt(ev, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fv.SetInt(iv)

	case reflect.Uint, reflect.Uint64:
		iv, err := strconv.ParseUint(ev, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fv.SetUint(iv)

	case reflect.Float64:
		iv, err := strconv.ParseFloat(ev, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fv.SetFloat(iv)

	case reflect.Bool:
		switch strings.ToLower(ev) {
		case "yes", "true":
			fv.SetBool(true)

		case "no", "false":
			fv.SetBool(false)

		default:
			return fmt.Errorf("%s: invalid value '%s'", key, ev)
		}

	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%s: unsupported type: %v", key, fv.Type())
		}

		if ev == "" {
			fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))
		} else {
			parts := strings.Split(ev, ",")
			sv := reflect.MakeSlice(fv.Type(), len(parts), len(parts))
			for i, p := range parts {
				sv.Index(i).SetString(p)
			}
			fv.Set(sv)
		}

	default:
		return fmt.Errorf("%s: unsupported type: %v", key, fv.Type())
	}

	return nil
}

func loadStruct(env map[string]string, prefix string, sv reflect.Value) error {
	st := sv.Type()

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)

		jsonTag := strings.Split(f.Tag.Get("json"), ",")[0]
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		err := loadField(env, prefix+"_"+strings.ToUpper(jsonTag), sv.Field(i))
		if err != nil {
			return err
		}
	}

	return nil
}

func loadWithEnv(env map[string]string, prefix string, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("destination must be a pointer to a struct")
	}

	return loadStruct(env, prefix, rv.Elem())
}

func envToMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		tmp := strings.SplitN(kv, "=", 2)
		env[tmp[0]] = tmp[1]
	}
	return env
}

// Load loads the configuration from the environment.
// Each field is read from the variable named after the prefix and
// the upper-cased JSON tag of the field, separated by an underscore.
func Load(prefix string, v interface{}) error {
	return loadWithEnv(envToMap(), prefix, v)
}
