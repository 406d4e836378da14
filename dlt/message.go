package dlt

import (
	"fmt"
)

// Message is a fully decoded DLT message.
type Message struct {
	Header   *StandardHeader
	Extended *ExtendedHeader
	Payload  Payload
}

// ParsedMessage is the outcome of decoding one span.
// Implementations: Item, Invalid, FilteredOut.
type ParsedMessage interface {
	isParsedMessage()
}

// Item is a successfully decoded message.
type Item struct {
	Message *Message
}

// Invalid is a message whose headers decoded but whose payload did not.
type Invalid struct {
	Reason string
}

// FilteredOut is a decoded message rejected by the decoder's Filter.
type FilteredOut struct {
	Message *Message
}

func (Item) isParsedMessage()        {}
func (Invalid) isParsedMessage()     {}
func (FilteredOut) isParsedMessage() {}

// Decoder decodes complete message spans.
type Decoder struct {
	// Filter, if set, turns rejected messages into FilteredOut.
	Filter *Filter
}

// Decode decodes the message at the start of span.
//
// Header-level failures are returned as errors. Payload-level failures
// produce Invalid. rest holds the bytes the decoded message did not use:
// payload bytes after the last verbose argument, then anything past the
// overall length. A well-formed message leaves none.
func (d *Decoder) Decode(span []byte) (ParsedMessage, []byte, error) {
	hdr, err := ParseStandardHeader(span)
	if err != nil {
		return nil, nil, err
	}

	total := int(hdr.OverallLength)
	if len(span) < total {
		return nil, nil, fmt.Errorf("%w: overall length %d, span is %d bytes", ErrShortHeader, total, len(span))
	}
	rest := span[total:]

	msg := &Message{Header: hdr}
	offset := standardHeaderLength(span[0])
	if hdr.HasExtendedHeader {
		ext, err := parseExtendedHeader(span[offset:total])
		if err != nil {
			return nil, nil, err
		}
		msg.Extended = ext
		offset += ExtendedHeaderLength
	}

	payload, n, err := parsePayload(span[offset:total], hdr.BigEndian, msg.Extended)
	if err != nil {
		return Invalid{Reason: err.Error()}, rest, nil
	}
	msg.Payload = payload
	rest = span[offset+n:]

	if d != nil && !d.Filter.Accept(msg) {
		return FilteredOut{Message: msg}, rest, nil
	}
	return Item{Message: msg}, rest, nil
}
