package modem

import "encoding/xml"

// Request and response bodies of the device API. The schema is pinned by the
// client tests; firmware revisions that change it get a new fixture set.

type sesTokInfo struct {
	XMLName xml.Name `xml:"response"`
	SesInfo string   `xml:"SesInfo"`
	TokInfo string   `xml:"TokInfo"`
}

type errorResponse struct {
	XMLName xml.Name `xml:"error"`
	Code    int      `xml:"code"`
	Message string   `xml:"message"`
}

type phoneList struct {
	Phone []string `xml:"Phone"`
}

// concatInfo carries the multi-part envelope: the shared reference number
// and this part's 1-based position.
type concatInfo struct {
	Ref   int `xml:"Ref"`
	Seq   int `xml:"Seq"`
	Total int `xml:"Total"`
}

type sendRequest struct {
	XMLName  xml.Name    `xml:"request"`
	Index    int         `xml:"Index"`
	Phones   phoneList   `xml:"Phones"`
	Sca      string      `xml:"Sca"`
	Content  string      `xml:"Content"`
	Length   int         `xml:"Length"`
	Reserved int         `xml:"Reserved"`
	Date     int         `xml:"Date"`
	Concat   *concatInfo `xml:"Concat,omitempty"`
}

type listRequest struct {
	XMLName         xml.Name `xml:"request"`
	PageIndex       int      `xml:"PageIndex"`
	ReadCount       int      `xml:"ReadCount"`
	BoxType         int      `xml:"BoxType"`
	SortType        int      `xml:"SortType"`
	Ascending       int      `xml:"Ascending"`
	UnreadPreferred int      `xml:"UnreadPreferred"`
}

type listResponse struct {
	XMLName  xml.Name  `xml:"response"`
	Count    int       `xml:"Count"`
	Messages []Message `xml:"Messages>Message"`
}

type deleteRequest struct {
	XMLName xml.Name `xml:"request"`
	Index   int      `xml:"Index"`
}

type monitoringStatus struct {
	XMLName            xml.Name `xml:"response"`
	ConnectionStatus   int      `xml:"ConnectionStatus"`
	SignalIcon         int      `xml:"SignalIcon"`
	CurrentNetworkType int      `xml:"CurrentNetworkType"`
	ServiceStatus      int      `xml:"ServiceStatus"`
	SimStatus          int      `xml:"SimStatus"`
	RoamingStatus      int      `xml:"RoamingStatus"`
}

type smsCount struct {
	XMLName     xml.Name `xml:"response"`
	LocalUnread int      `xml:"LocalUnread"`
	LocalInbox  int      `xml:"LocalInbox"`
	LocalOutbox int      `xml:"LocalOutbox"`
	LocalDraft  int      `xml:"LocalDraft"`
	SimUnread   int      `xml:"SimUnread"`
	SimInbox    int      `xml:"SimInbox"`
	SimOutbox   int      `xml:"SimOutbox"`
	SimDraft    int      `xml:"SimDraft"`
	LocalMax    int      `xml:"LocalMax"`
	SimMax      int      `xml:"SimMax"`
	SimUsed     int      `xml:"SimUsed"`
	NewMsg      int      `xml:"NewMsg"`
}
