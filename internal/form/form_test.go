package form

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraft() *Draft {
	return &Draft{
		FormFileName: "application.pdf",
		Fields: []*Field{
			{Label: "Name", Description: "Full name", Type: FieldTypeText},
			{Label: "Email", Type: FieldTypeText, Value: Text("jane@example.com"), DocID: StringPtr("cv.pdf__20240101120000")},
			{Label: "Pets", Type: FieldTypeCheckboxGroup, Options: []string{"Pets1", "Pets2"}, OptionLabels: []string{"Dog", "Cat"}},
			{Label: "Country", Type: FieldTypeDropdown, Options: []string{"NL", "DE"}},
			{Label: "Languages", Type: FieldTypeListBox, Options: []string{"en", "nl", "de"}},
		},
	}
}

func TestValueShapes(t *testing.T) {
	var zero Value
	assert.True(t, zero.IsEmpty())
	assert.False(t, zero.IsList())

	assert.False(t, Text("x").IsEmpty())
	assert.True(t, List().IsEmpty())
	assert.False(t, List(StateOff).IsEmpty())

	items := []string{"a", "b"}
	v := List(items...)
	items[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, v.Items())
	assert.Nil(t, Text("a").Items())
	assert.Equal(t, "", v.Text())
	assert.Equal(t, "a, b", v.String())

	assert.True(t, List("a").Equal(List("a")))
	assert.False(t, List("a").Equal(Text("a")))
	assert.False(t, Text("a").Equal(Text("b")))
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"empty scalar", Value{}, `""`},
		{"scalar", Text("Jane Doe"), `"Jane Doe"`},
		{"list", List(StateChecked, StateOff), `["checked","off"]`},
		{"empty list", List(), `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back Value
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, tt.in.Equal(back), "round trip changed %v into %v", tt.in, back)
		})
	}

	var v Value
	require.NoError(t, json.Unmarshal([]byte("null"), &v))
	assert.True(t, v.IsEmpty())
	assert.Error(t, json.Unmarshal([]byte("42"), &v))
}

func TestTimestampJSON(t *testing.T) {
	var zero Timestamp
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))

	ts := Timestamp{Time: time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)}
	data, err = json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01 09:30:00"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Equal(back.Time))

	require.NoError(t, json.Unmarshal([]byte(`""`), &back))
	assert.True(t, back.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &back))
}

func TestFieldCheckValue(t *testing.T) {
	d := sampleDraft()

	tests := []struct {
		name    string
		label   string
		value   Value
		wantErr bool
	}{
		{"text scalar", "Name", Text("Jane"), false},
		{"text list", "Name", List("Jane"), true},
		{"group states", "Pets", List(StateChecked, StateOff), false},
		{"group wrong length", "Pets", List(StateChecked), true},
		{"group free text", "Pets", List("yes", "no"), true},
		{"group scalar", "Pets", Text(StateChecked), true},
		{"dropdown option", "Country", Text("NL"), false},
		{"dropdown free text", "Country", Text("France"), true},
		{"list box subset", "Languages", List("en", "de"), false},
		{"list box outsider", "Languages", List("fr"), true},
		{"empty always legal", "Country", Value{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Field(tt.label).CheckValue(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cb := &Field{Label: "Agree", Type: FieldTypeCheckbox}
	assert.NoError(t, cb.Set(Text(StateChecked)))
	assert.Error(t, cb.Set(Text("yes")))
	assert.Equal(t, StateChecked, cb.Value.Text())
}

func TestFieldMatchOption(t *testing.T) {
	f := sampleDraft().Field("Pets")

	opt, ok := f.MatchOption(" cat ")
	assert.True(t, ok)
	assert.Equal(t, "Pets2", opt)

	opt, ok = f.MatchOption("pets1")
	assert.True(t, ok)
	assert.Equal(t, "Pets1", opt)

	_, ok = f.MatchOption("hamster")
	assert.False(t, ok)
	_, ok = f.MatchOption("")
	assert.False(t, ok)

	assert.Equal(t, "Dog", f.OptionLabel(0))
	assert.Equal(t, "", f.OptionLabel(5))
}

func TestDraftQueries(t *testing.T) {
	d := sampleDraft()

	assert.Equal(t, 4, d.UnansweredCount())
	assert.False(t, d.Complete())
	assert.Equal(t, "Name", d.FirstUnanswered().Label)
	assert.Equal(t, "Country", d.FirstUnansweredOfType(FieldTypeDropdown).Label)
	assert.Nil(t, d.Field("Missing"))

	labels := []string{}
	for _, f := range d.Unanswered() {
		labels = append(labels, f.Label)
	}
	assert.Equal(t, []string{"Name", "Pets", "Country", "Languages"}, labels)

	for _, f := range d.Fields {
		f.Value = map[FieldType]Value{
			FieldTypeText:          Text("x"),
			FieldTypeCheckboxGroup: List(StateOff, StateOff),
			FieldTypeDropdown:      Text("NL"),
			FieldTypeListBox:       List("en"),
		}[f.Type]
	}
	assert.True(t, d.Complete())
	assert.Nil(t, d.FirstUnanswered())
}

func TestDraftValidate(t *testing.T) {
	d := sampleDraft()
	require.NoError(t, d.Validate())

	d.Fields = append(d.Fields, &Field{Label: "Name", Type: FieldTypeText})
	assert.ErrorContains(t, d.Validate(), "duplicate")

	d = sampleDraft()
	d.Fields[0].DocID = StringPtr("doc")
	assert.ErrorContains(t, d.Validate(), "provenance")

	d = sampleDraft()
	d.Fields[0].Type = "signature"
	assert.Error(t, d.Validate())
}

func TestDraftJSONRoundTrip(t *testing.T) {
	d := sampleDraft()
	d.Fields[2].Value = List(StateChecked, StateOff)
	d.Fields[4].Value = List("nl")

	data, err := d.MarshalIndent()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"formFileName": "application.pdf"`)
	assert.Contains(t, string(data), `"docId": null`)
	assert.Contains(t, string(data), `"lastSurveyed": ""`)

	back, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, back.Fields, len(d.Fields))
	for i := range d.Fields {
		assert.Equal(t, d.Fields[i].Label, back.Fields[i].Label)
		assert.True(t, d.Fields[i].Value.Equal(back.Fields[i].Value), d.Fields[i].Label)
	}
	assert.Equal(t, "cv.pdf__20240101120000", *back.Field("Email").DocID)

	_, err = Parse([]byte(`{"fields":[{"label":"A","type":"nope"}]}`))
	assert.Error(t, err)
}

func TestDraftClone(t *testing.T) {
	d := sampleDraft()
	d.Fields[2].Value = List(StateChecked, StateOff)

	cp := d.Clone()
	cp.Fields[0].Value = Text("changed")
	*cp.Fields[1].DocID = "other"
	cp.Fields[2].Options[0] = "X"

	assert.True(t, d.Fields[0].Value.IsEmpty())
	assert.Equal(t, "cv.pdf__20240101120000", *d.Fields[1].DocID)
	assert.Equal(t, "Pets1", d.Fields[2].Options[0])
	assert.True(t, d.Fields[2].Value.Equal(cp.Fields[2].Value))
}

func TestDraftSummary(t *testing.T) {
	s := sampleDraft().Summary()
	assert.Contains(t, s, "1 of 5 fields answered")
	assert.Contains(t, s, "1. Name [text]: <empty>")
	assert.Contains(t, s, "(from cv.pdf__20240101120000)")
}
