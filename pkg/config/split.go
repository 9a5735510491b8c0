package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"
)

// SplitQuotedFields is like strings.Fields but keeps spaces inside areas
// surrounded by the quote character. Inside quotes a backslash escapes the
// following character: '\''.
func SplitQuotedFields(in string, quote rune) []string {
	var (
		r       = []string{}
		buf     bytes.Buffer
		started bool // a field is open, possibly empty ("")
		quoted  bool
		escaped bool
	)

	flush := func() {
		if started {
			r = append(r, buf.String())
		}
		buf.Reset()
		started = false
	}

	for _, ch := range in {
		switch {
		case escaped:
			buf.WriteRune(ch)
			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == quote:
			quoted = !quoted
			started = true
		case quoted:
			buf.WriteRune(ch)
		case unicode.IsSpace(ch):
			flush()
		default:
			buf.WriteRune(ch)
			started = true
		}
	}
	flush()

	return r
}

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
	tag      string
}

func iterateConfiguration(conf interface{}, tag string) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, -1, tag}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get(it.tag)
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

// ConfigureList writes every configuration parameter of conf, one per
// line, to w. Parameters are named after the struct tag tag.
func ConfigureList(w io.Writer, conf interface{}, tag string) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	it := iterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		writeField(tw, fieldName, field)
	}
	return tw.Flush()
}

// ConfigureListByName returns the "name\tvalue\n" line of the parameter
// named cfgname, or the empty string if there is no such parameter.
func ConfigureListByName(conf interface{}, cfgname, tag string) string {
	if cfgname == "" {
		return ""
	}
	it := iterateConfiguration(conf, tag)
	buf := bytes.NewBuffer(nil)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == cfgname {
			writeField(buf, fieldName, field)
			break
		}
	}
	return buf.String()
}

func writeField(w io.Writer, fieldName string, field reflect.Value) {
	if field.Kind() == reflect.Ptr {
		if !field.IsNil() {
			fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Elem())
		} else {
			fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
		}
		return
	}
	fmt.Fprintf(w, "%s\t%v\n", fieldName, field)
}

func configureFindFieldByName(conf interface{}, name, tag string) reflect.Value {
	it := iterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}

var durationType = reflect.TypeOf(time.Duration(0))

// ConfigureSet parses args ("name value") and sets the corresponding
// parameter of conf. Only scalar parameters and string lists can be set.
// A value the configuration does not validate with leaves conf unchanged.
func ConfigureSet(conf *Config, args string) error {
	v := SplitQuotedFields(args, '"')
	if len(v) == 0 {
		return fmt.Errorf("wrong number of arguments to \"config\"")
	}
	cfgname, rest := v[0], v[1:]

	field := configureFindFieldByName(conf, cfgname, "yaml")
	if !field.CanAddr() {
		return fmt.Errorf("%q is not a configuration parameter", cfgname)
	}

	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		if len(rest) != 1 && typ.Kind() != reflect.Slice {
			return reflect.ValueOf(nil), fmt.Errorf("wrong number of arguments for %q", cfgname)
		}
		switch {
		case typ == durationType:
			d, err := time.ParseDuration(rest[0])
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a duration", cfgname)
			}
			return reflect.ValueOf(&d), nil
		case typ.Kind() == reflect.Int:
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case typ.Kind() == reflect.Bool:
			b := rest[0] == "true"
			return reflect.ValueOf(&b), nil
		case typ.Kind() == reflect.String:
			s := rest[0]
			return reflect.ValueOf(&s), nil
		case typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.String:
			l := append([]string{}, rest...)
			return reflect.ValueOf(&l), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}

	prev := reflect.New(field.Type()).Elem()
	prev.Set(field)

	if field.Kind() == reflect.Ptr {
		val, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(val)
	} else {
		val, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	if err := conf.Validate(); err != nil {
		field.Set(prev)
		return err
	}
	return nil
}
