package favorites

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Entity is a favorited product, professional, business or order as the
// API returns it. The identity fields are decoded for the controller's
// own use; Fields keeps the complete payload and is what MarshalJSON
// emits, so consumers see exactly what the server sent.
type Entity struct {
	ID                 int64
	BusinessID         int64
	OriginalBusinessID int64
	BusinessIDs        []int64
	Slug               string

	Fields map[string]json.RawMessage
}

type entityWire struct {
	ID         flexID  `json:"id"`
	BusinessID *flexID `json:"business_id"`
	Slug       string  `json:"slug"`
	Businesses businessRefs `json:"businesses"`
	Original   originalRef  `json:"original"`
}

// UnmarshalJSON decodes the identity fields and keeps the raw payload.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}

	var wire entityWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode entity identity: %w", err)
	}

	*e = Entity{
		ID:     int64(wire.ID),
		Slug:   wire.Slug,
		Fields: fields,
	}
	if wire.BusinessID != nil {
		e.BusinessID = int64(*wire.BusinessID)
	}
	e.OriginalBusinessID = int64(wire.Original)
	if len(wire.Businesses) > 0 {
		e.BusinessIDs = []int64(wire.Businesses)
	}
	return nil
}

// MarshalJSON re-emits the server payload, or the identity fields for
// entities built in code.
func (e Entity) MarshalJSON() ([]byte, error) {
	if e.Fields != nil {
		return json.Marshal(e.Fields)
	}

	out := map[string]any{"id": e.ID}
	if e.BusinessID != 0 {
		out["business_id"] = e.BusinessID
	}
	if e.Slug != "" {
		out["slug"] = e.Slug
	}
	if len(e.BusinessIDs) > 0 {
		businesses := make([]map[string]int64, len(e.BusinessIDs))
		for i, id := range e.BusinessIDs {
			businesses[i] = map[string]int64{"id": id}
		}
		out["businesses"] = businesses
	}
	if e.OriginalBusinessID != 0 {
		out["original"] = map[string]int64{"business_id": e.OriginalBusinessID}
	}
	return json.Marshal(out)
}

// OwningBusinessID is business_id, falling back to original.business_id.
func (e Entity) OwningBusinessID() int64 {
	if e.BusinessID != 0 {
		return e.BusinessID
	}
	return e.OriginalBusinessID
}

// SoldBy reports whether businessID is among the entity's businesses.
func (e Entity) SoldBy(businessID int64) bool {
	for _, id := range e.BusinessIDs {
		if id == businessID {
			return true
		}
	}
	return false
}

// Field decodes the raw payload field name into v. It reports false when
// the field is absent.
func (e Entity) Field(name string, v any) (bool, error) {
	raw, ok := e.Fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode field %s: %w", name, err)
	}
	return true, nil
}

// Reference is one row of a favorites collection. Product and user are
// embedded only by the product and professional collections.
type Reference struct {
	ID       int64   `json:"id"`
	ObjectID int64   `json:"object_id"`
	Product  *Entity `json:"product,omitempty"`
	User     *Entity `json:"user,omitempty"`
}

// flexID accepts numeric ids sent either as JSON numbers or strings.
// Anything else decodes as zero.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		if fl, ferr := strconv.ParseFloat(string(data), 64); ferr == nil {
			n = int64(fl)
		} else {
			n = 0
		}
	}
	*f = flexID(n)
	return nil
}

// businessRefs accepts a list of business objects or bare ids. Elements
// that are neither are skipped; a value that is not a list decodes empty.
type businessRefs []int64

func (b *businessRefs) UnmarshalJSON(data []byte) error {
	*b = nil
	var items []json.RawMessage
	if json.Unmarshal(data, &items) != nil {
		return nil
	}
	for _, item := range items {
		var id flexID
		if trimmed := bytes.TrimSpace(item); len(trimmed) > 0 && trimmed[0] == '{' {
			var obj struct {
				ID flexID `json:"id"`
			}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			id = obj.ID
		} else if json.Unmarshal(item, &id) != nil {
			continue
		}
		if id != 0 {
			*b = append(*b, int64(id))
		}
	}
	return nil
}

// originalRef reads business_id from the original object. Any other
// shape decodes as zero.
type originalRef int64

func (o *originalRef) UnmarshalJSON(data []byte) error {
	*o = 0
	var obj struct {
		BusinessID flexID `json:"business_id"`
	}
	if json.Unmarshal(data, &obj) == nil {
		*o = originalRef(obj.BusinessID)
	}
	return nil
}
