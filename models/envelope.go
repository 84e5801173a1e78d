package models

import "encoding/json"

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////////// REST ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Envelope is the outer wrapper common to every Bybit v5 REST response. The
// payload stays raw so each endpoint can decode its own result type.
type Envelope struct {
	RetCode    int             `json:"retCode"`
	RetMsg     string          `json:"retMsg"`
	Result     json.RawMessage `json:"result"`
	RetExtInfo json.RawMessage `json:"retExtInfo,omitempty"`
	Time       int64           `json:"time"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// WEBSOCKET /////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// WsFrame is the decoded form of any inbound websocket message. Exactly one
// of the two shapes is populated: op responses carry Op/Success/ReqID, data
// messages carry Topic/Type/Data.
type WsFrame struct {
	// op response fields
	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`
	ConnID  string `json:"conn_id,omitempty"`
	ReqID   string `json:"req_id,omitempty"`

	// data message fields
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"`
	TS    int64           `json:"ts,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FrameKind classifies an inbound websocket frame after envelope decode.
type FrameKind int

const (
	FramePong FrameKind = iota
	FrameAuthAck
	FrameSubscriptionAck
	FrameData
	FrameError
	FrameUnknown
)

// Kind classifies the frame. Unknown op tags map to FrameUnknown so the
// session can surface them as protocol errors instead of guessing.
func (f *WsFrame) Kind() FrameKind {
	if f.Topic != "" {
		return FrameData
	}
	switch f.Op {
	case "pong", "ping":
		return FramePong
	case "auth":
		return FrameAuthAck
	case "subscribe", "unsubscribe":
		if f.Success != nil && !*f.Success {
			return FrameError
		}
		return FrameSubscriptionAck
	}
	if f.RetMsg == "pong" {
		return FramePong
	}
	return FrameUnknown
}

// WsDataMessage is a data frame handed to subscription consumers.
type WsDataMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// WsRequest is an outbound op frame (auth, subscribe, unsubscribe, ping).
type WsRequest struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args,omitempty"`
}
