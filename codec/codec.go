package codec

import (
	"github.com/iidesho/bragi/sbragi"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/iidesho/replog/crypto"
	"github.com/iidesho/replog/event"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// KeyProvider resolves the payload encryption key for a log. Returning an
// empty key disables encryption for that log.
type KeyProvider func(logId string) sbragi.RedactedString

func StaticProvider(key sbragi.RedactedString) KeyProvider {
	return func(_ string) sbragi.RedactedString {
		return key
	}
}

// NoCrypto is a KeyProvider that never encrypts.
func NoCrypto(_ string) sbragi.RedactedString {
	return ""
}

// MarshalEvent encodes an event for transfer or storage. Sentinel values
// and the sorted destination set are preserved exactly so every replica
// agrees on the encoded form bit for bit.
func MarshalEvent(e event.Event) (data []byte, err error) {
	data, err = json.Marshal(e)
	if err != nil {
		err = errors.Wrap(err, "marshalling event")
	}
	return
}

func UnmarshalEvent(data []byte) (e event.Event, err error) {
	err = json.Unmarshal(data, &e)
	if err != nil {
		err = errors.Wrap(err, "unmarshalling event")
	}
	return
}

func MarshalBatch(b event.Batch) (data []byte, err error) {
	data, err = json.Marshal(b)
	if err != nil {
		err = errors.Wrap(err, "marshalling batch")
	}
	return
}

func UnmarshalBatch(data []byte) (b event.Batch, err error) {
	err = json.Unmarshal(data, &b)
	if err != nil {
		err = errors.Wrap(err, "unmarshalling batch")
	}
	return
}

// Encrypt returns a copy of the event with its payload data sealed under
// the key the provider resolves for the event's target log. Events with no
// key configured pass through unchanged.
func Encrypt(e event.Event, key KeyProvider) (out event.Event, err error) {
	out = e
	k := key(e.TargetLogId)
	if k == "" {
		return
	}
	data, err := crypto.Encrypt(e.Payload.Data, string(k))
	if err != nil {
		err = errors.Wrap(err, "encrypting payload")
		return
	}
	out.Payload = event.Payload{Type: e.Payload.Type, Data: data}
	return
}

// Decrypt reverses Encrypt.
func Decrypt(e event.Event, key KeyProvider) (out event.Event, err error) {
	out = e
	k := key(e.TargetLogId)
	if k == "" {
		return
	}
	data, err := crypto.Decrypt(e.Payload.Data, string(k))
	if err != nil {
		err = errors.Wrap(err, "decrypting payload")
		return
	}
	out.Payload = event.Payload{Type: e.Payload.Type, Data: data}
	return
}
