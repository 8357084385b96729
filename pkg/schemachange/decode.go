// Copyright (C) 2025 ScyllaDB

package schemachange

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/scylladb/cql-schema-metadata/pkg/util/cql"
)

const schemaChangeEventType = "SCHEMA_CHANGE"

// ErrNotSchemaChange is returned for EVENT bodies of other event types.
var ErrNotSchemaChange = errors.New("not a schema change event")

// DecodeEventFrame decodes a complete native protocol EVENT frame.
func DecodeEventFrame(frame []byte) (Event, error) {
	fp := cql.NewFrameParser(bytes.NewBuffer(frame))

	h, err := fp.ReadHeader()
	if err != nil {
		return Event{}, err
	}

	if !h.IsResponse() {
		return Event{}, fmt.Errorf("expected a response frame, got version byte %#x", h.Version)
	}

	if h.Opcode != cql.OpcodeEvent {
		return Event{}, fmt.Errorf("expected EVENT opcode %#x, got %#x", cql.OpcodeEvent, h.Opcode)
	}

	if int(h.Length) != fp.Len() {
		return Event{}, fmt.Errorf("frame body length %d doesn't match the header length %d", fp.Len(), h.Length)
	}

	return decodeEvent(fp)
}

// DecodeEventBody decodes the body of an EVENT frame:
//
//	[string]event_type [string]change [string]target [string]keyspace ([string]name ([string list]arguments))
func DecodeEventBody(body []byte) (Event, error) {
	return decodeEvent(cql.NewFrameParser(bytes.NewBuffer(body)))
}

func decodeEvent(fp *cql.FrameParser) (Event, error) {
	eventType, err := fp.ReadString()
	if err != nil {
		return Event{}, fmt.Errorf("can't read event type: %w", err)
	}
	if eventType != schemaChangeEventType {
		return Event{}, fmt.Errorf("%w: %q", ErrNotSchemaChange, eventType)
	}

	rawChange, err := fp.ReadString()
	if err != nil {
		return Event{}, fmt.Errorf("can't read change type: %w", err)
	}

	change, err := parseChange(rawChange)
	if err != nil {
		return Event{}, err
	}

	target, err := fp.ReadString()
	if err != nil {
		return Event{}, fmt.Errorf("can't read change target: %w", err)
	}

	ev := Event{
		Change: change,
		Target: Target(target),
	}

	ev.Keyspace, err = fp.ReadString()
	if err != nil {
		return Event{}, fmt.Errorf("can't read keyspace: %w", err)
	}

	switch ev.Target {
	case TargetKeyspace:
	case TargetTable, TargetType:
		ev.Name, err = fp.ReadString()
		if err != nil {
			return Event{}, fmt.Errorf("can't read %s name: %w", ev.Target, err)
		}
	case TargetFunction, TargetAggregate:
		ev.Name, err = fp.ReadString()
		if err != nil {
			return Event{}, fmt.Errorf("can't read %s name: %w", ev.Target, err)
		}
		ev.Arguments, err = fp.ReadStringList()
		if err != nil {
			return Event{}, fmt.Errorf("can't read %s arguments: %w", ev.Target, err)
		}
	default:
		return Event{}, fmt.Errorf("unknown schema change target %q", target)
	}

	if fp.Len() != 0 {
		return Event{}, fmt.Errorf("unexpected %d trailing bytes after %s event", fp.Len(), ev.Target)
	}

	return ev, nil
}
