package remotemsg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventTimeLayout is the timestamp format of the event_time field, local time
// with millisecond precision.
const EventTimeLayout = "2006-01-02 15:04:05.000"

const msgTypePrefix = "CONTROL_MSG_TYPE_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// message is one remote record. Exactly the payload named by MsgType is set.
type message struct {
	EventTime          *eventTime        `json:"event_time,omitempty"`
	MsgType            string            `json:"msg_type"`
	KeyCode            *keyCodePayload   `json:"key_code,omitempty"`
	InjectText         *textPayload      `json:"inject_text,omitempty"`
	TouchEvent         *touchPayload     `json:"touch_event,omitempty"`
	ScrollEvent        *scrollPayload    `json:"scroll_event,omitempty"`
	SetClipboard       *textPayload      `json:"set_clipboard,omitempty"`
	SetScreenPowerMode *powerModePayload `json:"set_screen_power_mode,omitempty"`
}

type keyCodePayload struct {
	Action    *int64 `json:"action" validate:"required,gte=0,lte=255"`
	KeyCode   *int64 `json:"key_code" validate:"required,gte=-2147483648,lte=2147483647"`
	MetaState *int64 `json:"meta_state" validate:"required,gte=0,lte=4294967295"`
}

type textPayload struct {
	Text *string `json:"text" validate:"required"`
}

type touchPayload struct {
	Action   *int64        `json:"action" validate:"required,gte=0,lte=255"`
	Buttons  *int64        `json:"buttons" validate:"required,gte=0,lte=4294967295"`
	Pointer  *pointerID    `json:"pointer" validate:"required"`
	Pressure *float64      `json:"pressure" validate:"required,gte=0,lte=1"`
	Position *positionJSON `json:"position" validate:"required"`
}

type scrollPayload struct {
	HScroll  *int64        `json:"h_scroll" validate:"required,gte=-2147483648,lte=2147483647"`
	VScroll  *int64        `json:"v_scroll" validate:"required,gte=-2147483648,lte=2147483647"`
	Position *positionJSON `json:"position" validate:"required"`
}

type powerModePayload struct {
	Mode *int64 `json:"mode" validate:"required,oneof=0 2"`
}

type positionJSON struct {
	ScreenSize *sizeJSON  `json:"screen_size" validate:"required"`
	Point      *pointJSON `json:"point" validate:"required"`
}

type sizeJSON struct {
	Width  *int64 `json:"width" validate:"required,gte=0,lte=65535"`
	Height *int64 `json:"height" validate:"required,gte=0,lte=65535"`
}

type pointJSON struct {
	X *int64 `json:"x" validate:"required,gte=-2147483648,lte=2147483647"`
	Y *int64 `json:"y" validate:"required,gte=-2147483648,lte=2147483647"`
}

// pointerID accepts both signed and unsigned 64-bit integers and is written
// signed, so the mouse pointer is -1 on the wire.
type pointerID uint64

func (p *pointerID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		*p = pointerID(u)
		return nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("pointer %s: not a 64-bit integer", s)
	}
	*p = pointerID(uint64(i))
	return nil
}

func (p pointerID) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(p), 10), nil
}

type eventTime time.Time

func (t *eventTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("event_time: %w", err)
	}
	parsed, err := time.ParseInLocation(EventTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("event_time: %w", err)
	}
	*t = eventTime(parsed)
	return nil
}

func (t eventTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Local().Format(EventTimeLayout))
}

func ptr[T any](v T) *T { return &v }
