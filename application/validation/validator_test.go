package validation_test

import (
	"testing"

	"github.com/reglet-dev/plugabi/application/validation"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *validation.DescriptorValidator {
	t.Helper()
	v, err := validation.NewDescriptorValidator()
	require.NoError(t, err)
	return v
}

func TestValidateAPI(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		doc   string
		valid bool
		field string
	}{
		{"empty list", `{"API":[]}`, true, ""},
		{"full", `{"API":[{"name":"foo_args","return_type":"void","arguments":[{"name":"arg1","type":"uint"}],"varargs":false}]}`, true, ""},
		{"extra keys allowed", `{"API":[{"name":"f","return_type":"int","doc":"x"}],"version":2}`, true, ""},
		{"missing API", `{}`, false, "/"},
		{"missing return_type", `{"API":[{"name":"f"}]}`, false, "/API/0"},
		{"unknown return tag", `{"API":[{"name":"f","return_type":"int32"}]}`, false, "/API/0/return_type"},
		{"void argument", `{"API":[{"name":"f","return_type":"int","arguments":[{"name":"a","type":"void"}]}]}`, false, "/API/0/arguments/0/type"},
		{"empty name", `{"API":[{"name":"","return_type":"int"}]}`, false, "/API/0/name"},
		{"arguments not array", `{"API":[{"name":"f","return_type":"int","arguments":{}}]}`, false, "/API/0/arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.ValidateAPI([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, "%+v", res.Errors)
			if tt.valid {
				assert.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			fields := make([]string, 0, len(res.Errors))
			for _, e := range res.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.NotEmpty(t, res.Error())
		})
	}
}

func TestValidateAPI_MalformedJSON(t *testing.T) {
	_, err := newValidator(t).ValidateAPI([]byte(`{"API":[`))
	require.Error(t, err)
}

func TestValidateDescriptor(t *testing.T) {
	v := newValidator(t)

	good := &entities.Descriptor{
		Name:    "demo",
		Version: "1.0",
		API: entities.APIDocument{API: []entities.FunctionSpec{
			{Name: "foo_int", ReturnType: entities.TagInt},
		}},
	}
	res, err := v.ValidateDescriptor(good)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error())

	bad := &entities.Descriptor{
		Version: "",
		API: entities.APIDocument{API: []entities.FunctionSpec{
			{Name: "f", ReturnType: entities.TagInt},
			{Name: "f", ReturnType: entities.TagInt},
		}},
	}
	res, err = v.ValidateDescriptor(bad)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "Name")
	assert.Contains(t, fields, "Version")
	assert.Contains(t, fields, "API")

	_, err = v.ValidateDescriptor(nil)
	assert.Error(t, err)
}
