package gateway

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	DoNotReference:             true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
}

// SchemaFor derives a parameter schema from a struct. Field names come from the
// json tag, descriptions from jsonschema_description and required markers from
// jsonschema:"required".
func SchemaFor(v any) *Schema {
	return convertSchema(reflector.Reflect(v))
}

// Declare builds a Declaration whose parameters are reflected from params.
func Declare(name, description string, params any) Declaration {
	return Declaration{Name: name, Description: description, Parameters: SchemaFor(params)}
}

// DecodeParams decodes p into the struct dst points to, using the same json tags
// SchemaFor reads. Models often send numbers for string fields such as a RUC, so
// scalar values bound to string fields are converted with Params.String first.
func DecodeParams(p Params, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode params: want pointer to struct, got %T", dst)
	}
	in := make(Params, len(p))
	for k, v := range p {
		in[k] = v
	}
	t := rv.Elem().Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.String {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if v, ok := in[name]; ok && v != nil {
			in[name] = in.String(name)
		}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

func convertSchema(js *jsonschema.Schema) *Schema {
	if js == nil {
		return nil
	}
	s := &Schema{
		Type:        js.Type,
		Description: js.Description,
	}
	if len(js.Required) > 0 {
		s.Required = append([]string(nil), js.Required...)
	}
	for _, e := range js.Enum {
		s.Enum = append(s.Enum, fmt.Sprint(e))
	}
	if js.Properties != nil && js.Properties.Len() > 0 {
		s.Properties = make(map[string]*Schema, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			s.Properties[pair.Key] = convertSchema(pair.Value)
			s.PropertyOrder = append(s.PropertyOrder, pair.Key)
		}
	}
	return s
}
