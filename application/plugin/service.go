package plugin

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// Service is embedded in service structs to name the group of exports.
// Tag format: `name:"service_name"`
type Service struct{}

// Op declares one exported operation.
// Tag format: `method:"MethodName" params:"a,b"`
type Op struct{}

var (
	callType  = reflect.TypeOf((*Call)(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

var reflectKinds = map[reflect.Kind]entities.ValueKind{
	reflect.Int8:    entities.KindInt8,
	reflect.Int16:   entities.KindInt16,
	reflect.Int32:   entities.KindInt32,
	reflect.Int64:   entities.KindInt64,
	reflect.Uint8:   entities.KindUint8,
	reflect.Uint16:  entities.KindUint16,
	reflect.Uint32:  entities.KindUint32,
	reflect.Uint64:  entities.KindUint64,
	reflect.Float32: entities.KindFloat32,
	reflect.Float64: entities.KindFloat64,
	reflect.Bool:    entities.KindBool,
	reflect.String:  entities.KindString,
}

// MustRegisterService registers a service or panics.
func MustRegisterService(d *Definition, svc any) {
	if err := RegisterService(d, svc); err != nil {
		panic(fmt.Sprintf("failed to register service: %v", err))
	}
}

// RegisterService exports every Op field of svc as <service>_<op>, where op
// is the snake_case field name. The backing method's Go signature gives the
// schema: an optional leading *Call, then one scalar parameter per name in
// the params tag, and a result of (), (T), (error) or (T, error).
func RegisterService(d *Definition, svc any) error {
	svcType := reflect.TypeOf(svc)
	svcValue := reflect.ValueOf(svc)

	if svcType == nil || svcType.Kind() != reflect.Ptr || svcType.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("service must be a pointer to struct, got %T", svc)
	}
	structType := svcType.Elem()

	serviceName, err := extractServiceName(structType)
	if err != nil {
		return err
	}

	ops, err := extractOperations(structType)
	if err != nil {
		return err
	}

	for _, op := range ops {
		method := svcValue.MethodByName(op.methodName)
		if !method.IsValid() {
			return fmt.Errorf("service %s: no method %s for operation %s (field %s)",
				serviceName, op.methodName, op.name, op.fieldName)
		}
		name := serviceName + "_" + op.name
		if err := exportValue(d, name, method, op.params); err != nil {
			return fmt.Errorf("service %s, operation %s: %w", serviceName, op.name, err)
		}
	}
	return nil
}

// ExportFunc exports a plain Go function under name. Parameter names are
// given in order; the signature rules are those of RegisterService.
func ExportFunc(d *Definition, name string, fn any, params ...string) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("export %q: want a function, got %T", name, fn)
	}
	return exportValue(d, name, v, params)
}

func extractServiceName(t reflect.Type) (string, error) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type == reflect.TypeOf(Service{}) {
			name := field.Tag.Get("name")
			if name == "" {
				return "", fmt.Errorf("Service field missing 'name' tag")
			}
			return name, nil
		}
	}
	return "", fmt.Errorf("struct must embed plugin.Service")
}

type opInfo struct {
	fieldName  string
	methodName string
	name       string
	params     []string
}

func extractOperations(t reflect.Type) ([]opInfo, error) {
	var ops []opInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type != reflect.TypeOf(Op{}) {
			continue
		}
		methodName := field.Tag.Get("method")
		if methodName == "" {
			return nil, fmt.Errorf("operation %s: missing 'method' tag", field.Name)
		}
		var params []string
		if p := field.Tag.Get("params"); p != "" {
			for _, name := range strings.Split(p, ",") {
				params = append(params, strings.TrimSpace(name))
			}
		}
		ops = append(ops, opInfo{
			fieldName:  field.Name,
			methodName: methodName,
			name:       toSnakeCase(field.Name),
			params:     params,
		})
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("service has no operations (no Op fields)")
	}
	return ops, nil
}

// exportValue derives the schema of fn and registers a handler that fetches
// each parameter through the typed accessors.
func exportValue(d *Definition, name string, fn reflect.Value, names []string) error {
	ft := fn.Type()

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == callType {
		first = 1
	}
	if ft.IsVariadic() {
		return fmt.Errorf("variadic Go functions are not supported")
	}
	if ft.NumIn()-first != len(names) {
		return fmt.Errorf("function takes %d parameters, %d names given", ft.NumIn()-first, len(names))
	}

	params := make([]ParamSpec, len(names))
	for i, pname := range names {
		tag, err := tagForType(ft.In(first + i))
		if err != nil {
			return fmt.Errorf("parameter %q: %w", pname, err)
		}
		params[i] = Param(pname, tag)
	}

	ret, hasValue, hasErr, err := resultShape(ft)
	if err != nil {
		return err
	}

	handler := func(call *Call) (entities.Value, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if first == 1 {
			in = append(in, reflect.ValueOf(call))
		}
		args := call.Args()
		for i, p := range params {
			v, err := args.Tagged(p.name, p.tag)
			if err != nil {
				return entities.Void(), err
			}
			in = append(in, reflect.ValueOf(v.Interface()).Convert(ft.In(first+i)))
		}

		out := fn.Call(in)
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return entities.Void(), e.Interface().(error)
			}
		}
		if !hasValue {
			return entities.Void(), nil
		}
		return valueOf(out[0])
	}
	return d.Export(name, ret, handler, params...)
}

func tagForType(t reflect.Type) (entities.TypeTag, error) {
	kind, ok := reflectKinds[t.Kind()]
	if !ok {
		return "", fmt.Errorf("type %s has no type tag", t)
	}
	tag, _ := entities.TagForKind(kind)
	return tag, nil
}

func resultShape(ft reflect.Type) (ret entities.TypeTag, hasValue, hasErr bool, err error) {
	switch ft.NumOut() {
	case 0:
		return entities.TagVoid, false, false, nil
	case 1:
		if ft.Out(0) == errorType {
			return entities.TagVoid, false, true, nil
		}
		ret, err = tagForType(ft.Out(0))
		return ret, true, false, err
	case 2:
		if ft.Out(1) != errorType {
			return "", false, false, fmt.Errorf("second return value must be error")
		}
		ret, err = tagForType(ft.Out(0))
		return ret, true, true, err
	default:
		return "", false, false, fmt.Errorf("function must return at most (value, error)")
	}
}

func valueOf(rv reflect.Value) (entities.Value, error) {
	switch rv.Kind() {
	case reflect.Int8:
		return entities.Int8(int8(rv.Int())), nil
	case reflect.Int16:
		return entities.Int16(int16(rv.Int())), nil
	case reflect.Int32:
		return entities.Int32(int32(rv.Int())), nil
	case reflect.Int64:
		return entities.Int64(rv.Int()), nil
	case reflect.Uint8:
		return entities.Uint8(uint8(rv.Uint())), nil
	case reflect.Uint16:
		return entities.Uint16(uint16(rv.Uint())), nil
	case reflect.Uint32:
		return entities.Uint32(uint32(rv.Uint())), nil
	case reflect.Uint64:
		return entities.Uint64(rv.Uint()), nil
	case reflect.Float32:
		return entities.Float32(float32(rv.Float())), nil
	case reflect.Float64:
		return entities.Float64(rv.Float()), nil
	case reflect.Bool:
		return entities.Bool(rv.Bool()), nil
	case reflect.String:
		return entities.String(rv.String()), nil
	default:
		return entities.Void(), fmt.Errorf("unsupported result type %s", rv.Type())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts PascalCase to snake_case.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
