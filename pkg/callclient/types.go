// Package callclient is the agent side of the remote-call HTTP surface: the request
// and response documents for every call and a typed client that sends them.
package callclient

import "jobcontroller/internal/attr"

// Response is the common part of every call response. Result is 0 on success and
// negative on failure, in which case Error carries the reason.
type Response struct {
	Result int    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// MachineInfoRequest is the body of registerMachineInfo.
type MachineInfoRequest struct {
	StarterAddr string `json:"starterAddr"`
	HostName    string `json:"hostName"`
}

// RecordRequest carries one attribute record: starter info, job info updates, master
// info, event records and notifications.
type RecordRequest struct {
	Record *attr.Record `json:"record"`
}

// JobExitRequest is the body of jobExit.
type JobExitRequest struct {
	Status int          `json:"status"`
	Reason int          `json:"reason"`
	Update *attr.Record `json:"update,omitempty"`
}

// FileInfoRequest is the body of getFileInfo.
type FileInfoRequest struct {
	LogicalName string `json:"logicalName"`
}

// JobAttrRequest is the body of getJobAttr and setJobAttr.
type JobAttrRequest struct {
	Name string `json:"name"`
	Expr string `json:"expr,omitempty"`
	Log  bool   `json:"log,omitempty"`
}

// ConstrainRequest is the body of constrainRequirements.
type ConstrainRequest struct {
	Expr string `json:"expr"`
}

// SecSessionRequest is the body of getSecSessionInfo.
type SecSessionRequest struct {
	ReconnectHint    string `json:"reconnectHint,omitempty"`
	FileTransferHint string `json:"fileTransferHint,omitempty"`
}

// RecordResponse answers getJobInfo, getUserInfo and getJobAd. Owned tells the agent
// the record is its own copy.
type RecordResponse struct {
	Response
	Record *attr.Record `json:"record,omitempty"`
	Owned  bool         `json:"owned,omitempty"`
}

// FileInfoResponse answers getFileInfo.
type FileInfoResponse struct {
	Response
	URL string `json:"url,omitempty"`
}

// BufferInfo is the job's default I/O buffer configuration.
type BufferInfo struct {
	Bytes         int64 `json:"bytes"`
	BlockSize     int64 `json:"blockSize"`
	PrefetchBytes int64 `json:"prefetchBytes"`
}

// BufferInfoResponse answers getBufferInfo.
type BufferInfoResponse struct {
	Response
	BufferInfo
}

// JobAttrResponse answers getJobAttr.
type JobAttrResponse struct {
	Response
	Expr string `json:"expr,omitempty"`
}

// Session is one negotiated security session.
type Session struct {
	ID   string `json:"id"`
	Info string `json:"info"`
	Key  string `json:"key"`
}

// SecSessionResponse answers getSecSessionInfo.
type SecSessionResponse struct {
	Response
	Reconnect    Session `json:"reconnect"`
	FileTransfer Session `json:"fileTransfer"`
}
