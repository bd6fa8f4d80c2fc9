package domain

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_PreservesKeyOrder(t *testing.T) {
	raw := `{"size":["S","M"],"weight":0.5,"color":"red","a":"first-letter"}`

	var options Options
	require.NoError(t, json.Unmarshal([]byte(raw), &options))
	assert.Equal(t, []string{"size", "weight", "color", "a"}, options.Keys())

	out, err := json.Marshal(options)
	require.NoError(t, err)
	assert.Equal(t, raw, string(out))
}

func TestOptions_ValueKinds(t *testing.T) {
	var options Options
	require.NoError(t, json.Unmarshal([]byte(`{"color":"red","weight":0.5,"size":["S"]}`), &options))

	color, _ := options.Get("color")
	assert.Equal(t, OptionString, color.Kind())
	assert.Equal(t, "red", color.Str())
	assert.True(t, color.Allows("red"))

	weight, _ := options.Get("weight")
	assert.Equal(t, OptionNumber, weight.Kind())
	assert.Equal(t, 0.5, weight.Number())
	assert.Equal(t, "0.5", weight.NumberText())
	assert.Equal(t, "0.25", NumberOption(0.25).NumberText())

	size, _ := options.Get("size")
	assert.Equal(t, []string{"S"}, size.List())

	_, ok := options.Get("missing")
	assert.False(t, ok)
}

func TestOptions_NumbersKeepTheirText(t *testing.T) {
	for _, raw := range []string{
		`{"sku":12345678901234567890}`,
		`{"weight":1.50}`,
		`{"gsm":1e2}`,
		`{"offset":-0.000001}`,
	} {
		var options Options
		require.NoError(t, json.Unmarshal([]byte(raw), &options), raw)

		out, err := json.Marshal(options)
		require.NoError(t, err)
		assert.Equal(t, raw, string(out))

		stored, err := options.Value()
		require.NoError(t, err)
		var scanned Options
		require.NoError(t, scanned.Scan([]byte(stored.(string))))
		again, err := json.Marshal(scanned)
		require.NoError(t, err)
		assert.Equal(t, raw, string(again))
	}

	var options Options
	require.NoError(t, json.Unmarshal([]byte(`{"gsm":1e2}`), &options))
	gsm, _ := options.Get("gsm")
	assert.Equal(t, 100.0, gsm.Number())
}

func TestOptions_RejectsUnsupportedValues(t *testing.T) {
	for _, raw := range []string{
		`{"nested":{"a":1}}`,
		`{"flag":true}`,
		`{"mixed":["a",1]}`,
		`["not","an","object"]`,
	} {
		var options Options
		assert.Error(t, json.Unmarshal([]byte(raw), &options), raw)
	}
}

func TestOptions_NullIsEmpty(t *testing.T) {
	var options Options
	require.NoError(t, json.Unmarshal([]byte(`null`), &options))
	assert.Equal(t, 0, options.Len())

	out, err := json.Marshal(options)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestOptions_ScanAndValue(t *testing.T) {
	var options Options
	options.Set("size", ListOption("S", "M"))
	options.Set("color", StringOption("blue"))

	value, err := options.Value()
	require.NoError(t, err)

	var scanned Options
	require.NoError(t, scanned.Scan([]byte(value.(string))))
	assert.Equal(t, options.Keys(), scanned.Keys())

	size, ok := scanned.Get("size")
	require.True(t, ok)
	assert.Equal(t, OptionList, size.Kind())
	assert.True(t, size.Allows("M"))
	assert.False(t, size.Allows("XL"))
}

func TestOptions_CloneIsIndependent(t *testing.T) {
	var options Options
	options.Set("size", StringOption("M"))

	clone := options.Clone()
	clone.Set("color", StringOption("red"))

	assert.Equal(t, 1, options.Len())
	assert.Equal(t, 2, clone.Len())
}

// Property: any sequence of Set calls survives a JSON round trip in order
func TestProperty_OptionsOrderSurvivesEncoding(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("keys come back in insertion order", prop.ForAll(
		func(keys []string) bool {
			var options Options
			for i, key := range keys {
				options.Set(key, NumberOption(float64(i)))
			}

			data, err := json.Marshal(options)
			if err != nil {
				return false
			}
			var decoded Options
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			return assert.ObjectsAreEqual(options.Keys(), decoded.Keys())
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSelectedOptions_ValueIsCanonical(t *testing.T) {
	a := SelectedOptions{"size": "M", "color": "red"}
	b := SelectedOptions{"color": "red", "size": "M"}

	va, err := a.Value()
	require.NoError(t, err)
	vb, err := b.Value()
	require.NoError(t, err)
	assert.Equal(t, va, vb)

	var nilOptions SelectedOptions
	v, err := nilOptions.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
	assert.True(t, nilOptions.Equal(SelectedOptions{}))
}
