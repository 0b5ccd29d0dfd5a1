// Package sms implements SMS alphabet selection and multi-part segmentation.
//
// A message body is encoded either in the GSM 03.38 default alphabet or, when
// any character falls outside it, entirely in UCS-2. Bodies that exceed a
// single segment are split into concatenated parts sharing a reference
// number, with smaller per-part capacity to account for the concatenation
// header.
package sms

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"
)

// Alphabet identifies the encoding used for a message and its segments.
type Alphabet int

const (
	AlphabetGSM7 Alphabet = iota
	AlphabetUCS2
)

func (a Alphabet) String() string {
	if a == AlphabetUCS2 {
		return "ucs-2"
	}
	return "gsm-7"
}

// Segment capacities in encoded units: septets for GSM-7, UTF-16 code units
// for UCS-2. Concatenated parts lose capacity to the user data header.
const (
	GSM7SingleLimit = 160
	GSM7ConcatLimit = 153
	UCS2SingleLimit = 70
	UCS2ConcatLimit = 67

	DefaultMaxSegments = 8
)

// ErrMessageTooLong is returned when a body would need more segments than
// the encoder allows.
var ErrMessageTooLong = errors.New("message too long")

// Segment is one part of an encoded message. Seq is 1-based; all segments of
// one message share Ref and Total. Units is the encoded size of Text.
type Segment struct {
	Alphabet Alphabet
	Ref      uint8
	Seq      int
	Total    int
	Text     string
	Units    int
}

// Encoder splits message bodies into segments. The concatenation reference
// counter is shared across messages and wraps at 255; serialized sends keep a
// wrapped reference from colliding with a message still in flight.
type Encoder struct {
	maxSegments int

	mu  sync.Mutex
	ref uint8
}

// NewEncoder returns an encoder that refuses bodies needing more than
// maxSegments parts. A non-positive maxSegments selects the default.
func NewEncoder(maxSegments int) *Encoder {
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}
	return &Encoder{maxSegments: maxSegments}
}

// Encode selects an alphabet for body and splits it into segments. A body
// that fits a single segment yields one part without allocating a reference
// number. Multi-unit characters are never split across segment boundaries.
func (e *Encoder) Encode(body string) ([]Segment, error) {
	alphabet := SelectAlphabet(body)

	var pieces []piece
	switch alphabet {
	case AlphabetUCS2:
		pieces = split(body, UCS2SingleLimit, UCS2ConcatLimit, ucs2Units)
	default:
		pieces = split(body, GSM7SingleLimit, GSM7ConcatLimit, septets)
	}

	if len(pieces) > e.maxSegments {
		return nil, fmt.Errorf("%w: needs %d segments, limit is %d", ErrMessageTooLong, len(pieces), e.maxSegments)
	}

	var ref uint8
	if len(pieces) > 1 {
		ref = e.nextRef()
	}

	segments := make([]Segment, len(pieces))
	for i, p := range pieces {
		segments[i] = Segment{
			Alphabet: alphabet,
			Ref:      ref,
			Seq:      i + 1,
			Total:    len(pieces),
			Text:     p.text,
			Units:    p.units,
		}
	}
	return segments, nil
}

func (e *Encoder) nextRef() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.ref
	e.ref++
	return r
}

// SelectAlphabet returns AlphabetGSM7 when every character of body is
// representable in the GSM 03.38 default alphabet, AlphabetUCS2 otherwise.
func SelectAlphabet(body string) Alphabet {
	if IsGSM7(body) {
		return AlphabetGSM7
	}
	return AlphabetUCS2
}

// ucs2Units returns the UTF-16 size of r: 2 code units (a surrogate pair)
// for astral runes, 1 otherwise.
func ucs2Units(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

type piece struct {
	text  string
	units int
}

// split cuts body into pieces of at most concat units each, unless the whole
// body fits within single units. A character whose cost would overflow the
// current piece starts the next one, so multi-unit characters stay intact.
func split(body string, single, concat int, cost func(rune) int) []piece {
	total := 0
	for _, r := range body {
		total += cost(r)
	}
	if total <= single {
		return []piece{{text: body, units: total}}
	}

	var pieces []piece
	var b strings.Builder
	units := 0
	for _, r := range body {
		c := cost(r)
		if units+c > concat {
			pieces = append(pieces, piece{text: b.String(), units: units})
			b.Reset()
			units = 0
		}
		b.WriteRune(r)
		units += c
	}
	return append(pieces, piece{text: b.String(), units: units})
}
