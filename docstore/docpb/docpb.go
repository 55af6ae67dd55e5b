// Package docpb encodes document field maps as Firestore v1 protobuf
// documents, so that locally stored documents keep the same value types the
// Firestore client produces.
package docpb

import (
	"fmt"
	"time"

	"territory-admin/docstore"

	firestorepb "google.golang.org/genproto/googleapis/firestore/v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Marshal serializes a document.
func Marshal(doc *docstore.Document) ([]byte, error) {
	fields, err := EncodeFields(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("while encoding document %q: %w", doc.ID, err)
	}

	data, err := proto.Marshal(&firestorepb.Document{
		Name:   doc.ID,
		Fields: fields,
	})
	if err != nil {
		return nil, fmt.Errorf("while marshaling document %q: %w", doc.ID, err)
	}
	return data, nil
}

// Unmarshal parses a document written by Marshal.
func Unmarshal(data []byte) (*docstore.Document, error) {
	pb := &firestorepb.Document{}
	if err := proto.Unmarshal(data, pb); err != nil {
		return nil, fmt.Errorf("while unmarshaling document: %w", err)
	}

	return &docstore.Document{
		ID:     pb.GetName(),
		Fields: DecodeFields(pb.GetFields()),
	}, nil
}

func EncodeFields(fields map[string]any) (map[string]*firestorepb.Value, error) {
	out := make(map[string]*firestorepb.Value, len(fields))
	for k, v := range fields {
		pv, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = pv
	}
	return out, nil
}

func DecodeFields(fields map[string]*firestorepb.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = DecodeValue(v)
	}
	return out
}

func EncodeValue(v any) (*firestorepb.Value, error) {
	switch v := v.(type) {
	case nil:
		return &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}, nil
	case bool:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BooleanValue{BooleanValue: v}}, nil
	case string:
		return &firestorepb.Value{ValueType: &firestorepb.Value_StringValue{StringValue: v}}, nil
	case []byte:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BytesValue{BytesValue: v}}, nil
	case int:
		return integerValue(int64(v)), nil
	case int32:
		return integerValue(int64(v)), nil
	case int64:
		return integerValue(v), nil
	case float32:
		return doubleValue(float64(v)), nil
	case float64:
		return doubleValue(v), nil
	case time.Time:
		return &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: timestamppb.New(v)}}, nil
	case *time.Time:
		if v == nil {
			return EncodeValue(nil)
		}
		return EncodeValue(*v)
	case []string:
		vals := make([]any, len(v))
		for i, s := range v {
			vals[i] = s
		}
		return EncodeValue(vals)
	case []map[string]any:
		vals := make([]any, len(v))
		for i, m := range v {
			vals[i] = m
		}
		return EncodeValue(vals)
	case []any:
		arr := &firestorepb.ArrayValue{Values: make([]*firestorepb.Value, 0, len(v))}
		for i, elem := range v {
			pv, err := EncodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr.Values = append(arr.Values, pv)
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_ArrayValue{ArrayValue: arr}}, nil
	case map[string]any:
		fields, err := EncodeFields(v)
		if err != nil {
			return nil, err
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{Fields: fields}}}, nil
	default:
		return nil, fmt.Errorf("%w: %T", docstore.ErrUnsupportedValue, v)
	}
}

func integerValue(i int64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: i}}
}

func doubleValue(f float64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: f}}
}

// DecodeValue maps a protobuf value back onto the Firestore client's Go
// representation.
func DecodeValue(v *firestorepb.Value) any {
	switch vt := v.GetValueType().(type) {
	case *firestorepb.Value_BooleanValue:
		return vt.BooleanValue
	case *firestorepb.Value_StringValue:
		return vt.StringValue
	case *firestorepb.Value_BytesValue:
		return vt.BytesValue
	case *firestorepb.Value_IntegerValue:
		return vt.IntegerValue
	case *firestorepb.Value_DoubleValue:
		return vt.DoubleValue
	case *firestorepb.Value_TimestampValue:
		return vt.TimestampValue.AsTime()
	case *firestorepb.Value_ArrayValue:
		out := make([]any, 0, len(vt.ArrayValue.GetValues()))
		for _, elem := range vt.ArrayValue.GetValues() {
			out = append(out, DecodeValue(elem))
		}
		return out
	case *firestorepb.Value_MapValue:
		return DecodeFields(vt.MapValue.GetFields())
	default:
		return nil
	}
}
