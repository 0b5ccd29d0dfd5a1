package modem

import (
	"encoding/json"
	"fmt"
)

// BoxType selects which on-device message store an operation addresses.
type BoxType int

const (
	BoxUnknown    BoxType = -1
	BoxLocalInbox BoxType = 1
	BoxLocalSent  BoxType = 2
	BoxLocalDraft BoxType = 3
	BoxLocalTrash BoxType = 4
	BoxSimInbox   BoxType = 5
	BoxSimSent    BoxType = 6
	BoxSimDraft   BoxType = 7
	BoxMixInbox   BoxType = 8
	BoxMixSent    BoxType = 9
	BoxMixDraft   BoxType = 10
)

var boxTypeNames = map[BoxType]string{
	BoxLocalInbox: "local-inbox",
	BoxLocalSent:  "local-sent",
	BoxLocalDraft: "local-draft",
	BoxLocalTrash: "local-trash",
	BoxSimInbox:   "sim-inbox",
	BoxSimSent:    "sim-sent",
	BoxSimDraft:   "sim-draft",
	BoxMixInbox:   "mix-inbox",
	BoxMixSent:    "mix-sent",
	BoxMixDraft:   "mix-draft",
}

func (b BoxType) String() string {
	if s, ok := boxTypeNames[b]; ok {
		return s
	}
	return "unknown"
}

// ParseBoxType resolves the kebab-case box name used on flags and query
// parameters.
func ParseBoxType(s string) (BoxType, error) {
	for b, name := range boxTypeNames {
		if name == s {
			return b, nil
		}
	}
	return BoxUnknown, fmt.Errorf("unknown box type '%s'", s)
}

// SortType orders inbox listings.
type SortType int

const (
	SortDate  SortType = 0
	SortPhone SortType = 1
	SortIndex SortType = 2
)

func (s SortType) String() string {
	switch s {
	case SortPhone:
		return "phone"
	case SortIndex:
		return "index"
	default:
		return "date"
	}
}

// ParseSortType resolves the sort order name used on flags and query
// parameters.
func ParseSortType(s string) (SortType, error) {
	switch s {
	case "date":
		return SortDate, nil
	case "phone":
		return SortPhone, nil
	case "index":
		return SortIndex, nil
	}
	return SortDate, fmt.Errorf("unknown sort order '%s'", s)
}

// Stat is a message's read state.
type Stat int

const (
	StatUnread Stat = 0
	StatRead   Stat = 1
)

func (s Stat) String() string {
	if s == StatUnread {
		return "unread"
	}
	return "read"
}

func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stat) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "unread":
		*s = StatUnread
	case "read":
		*s = StatRead
	default:
		return fmt.Errorf("unknown message status '%s'", name)
	}
	return nil
}

// Priority is the sender-declared message priority.
type Priority int

const (
	PriorityNormal      Priority = 0
	PriorityInteractive Priority = 1
	PriorityUrgent      Priority = 2
	PriorityEmergency   Priority = 3
	PriorityUnknown     Priority = 4
)

var priorityNames = map[Priority]string{
	PriorityNormal:      "normal",
	PriorityInteractive: "interactive",
	PriorityUrgent:      "urgent",
	PriorityEmergency:   "emergency",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for v, s := range priorityNames {
		if s == name {
			*p = v
			return nil
		}
	}
	*p = PriorityUnknown
	return nil
}

// SmsType classifies a stored message.
type SmsType int

const (
	TypeSingle          SmsType = 1
	TypeMultipart       SmsType = 2
	TypeUnicode         SmsType = 5
	TypeDeliverySuccess SmsType = 7
	TypeDeliveryFailure SmsType = 8
)

var smsTypeNames = map[SmsType]string{
	TypeSingle:          "single",
	TypeMultipart:       "multipart",
	TypeUnicode:         "unicode",
	TypeDeliverySuccess: "delivery-success",
	TypeDeliveryFailure: "delivery-failure",
}

func (t SmsType) String() string {
	if s, ok := smsTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t SmsType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *SmsType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for v, s := range smsTypeNames {
		if s == name {
			*t = v
			return nil
		}
	}
	*t = TypeSingle
	return nil
}

// Message is one stored SMS as the modem reports it. The XML tags match the
// device's sms-list schema; the JSON tags are the gateway's API shape.
type Message struct {
	Stat     Stat     `xml:"Smstat" json:"status"`
	Index    int      `xml:"Index" json:"index"`
	Phone    string   `xml:"Phone" json:"phone"`
	Content  string   `xml:"Content" json:"content"`
	Date     string   `xml:"Date" json:"date"`
	Sca      string   `xml:"Sca" json:"sca,omitempty"`
	SaveType int      `xml:"SaveType" json:"save_type"`
	Priority Priority `xml:"Priority" json:"priority"`
	Type     SmsType  `xml:"SmsType" json:"type"`
}

// MessageList is one page of inbox messages.
type MessageList struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

// ListParams selects what an inbox read returns. Zero values fall back to
// the first page of the local inbox, 20 messages, newest first.
type ListParams struct {
	Page            int
	Count           int
	Box             BoxType
	Sort            SortType
	Ascending       bool
	UnreadPreferred bool
}

// StatusSnapshot is the modem's health at one point in time.
type StatusSnapshot struct {
	SignalLevel int    `json:"signal_level"`
	NetworkType string `json:"network_type"`
	Registered  bool   `json:"registered"`
	Unread      int    `json:"unread"`
	Stored      int    `json:"stored"`
	StorageMax  int    `json:"storage_max"`
}

var networkTypeNames = map[int]string{
	0:  "no-service",
	1:  "gsm",
	2:  "gprs",
	3:  "edge",
	4:  "wcdma",
	5:  "hsdpa",
	6:  "hsupa",
	7:  "hspa",
	9:  "hspa+",
	19: "lte",
}

func networkTypeName(code int) string {
	if s, ok := networkTypeNames[code]; ok {
		return s
	}
	return fmt.Sprintf("type-%d", code)
}
