package attr

// Attribute names shared by the controller and the agent.
const (
	JobState                     = "JobState"
	JobStartDate                 = "JobStartDate"
	JobUniverse                  = "JobUniverse"
	Iwd                          = "Iwd"
	FileRemaps                   = "FileRemaps"
	BufferFiles                  = "BufferFiles"
	BufferSize                   = "BufferSize"
	BufferBlockSize              = "BufferBlockSize"
	LocalFiles                   = "LocalFiles"
	FetchFiles                   = "FetchFiles"
	CompressFiles                = "CompressFiles"
	AppendFiles                  = "AppendFiles"
	HoldReason                   = "HoldReason"
	HoldReasonCode               = "HoldReasonCode"
	HoldReasonSubCode            = "HoldReasonSubCode"
	OnExitBySignal               = "OnExitBySignal"
	OnExitSignal                 = "OnExitSignal"
	OnExitCode                   = "OnExitCode"
	JobCoreDumped                = "JobCoreDumped"
	ExitReason                   = "ExitReason"
	ParallelMasterAddr           = "ParallelMasterAddr"
	UID                          = "Uid"
	GID                          = "Gid"
	EventTime                    = "EventTime"
	EventTypeNumber              = "EventTypeNumber"
	MyType                       = "MyType"
	ExecuteHost                  = "ExecuteHost"
	ErrorMsg                     = "ErrorMsg"
	CriticalError                = "CriticalError"
	Daemon                       = "Daemon"
	Message                      = "Message"
	EventType                    = "EventType"
	Requirements                 = "Requirements"
	AgentRequirements            = "AgentRequirements"
	ControllerVersion            = "ControllerVersion"
	NumJobCompletions            = "NumJobCompletions"
	ActivationExitExecutionTime  = "ActivationExitExecutionTime"
	EnteredCurrentStatus         = "EnteredCurrentStatus"
	RemoteHost                   = "RemoteHost"
	StarterIPAddr                = "StarterIpAddr"
	JobCurrentStartExecutingDate = "JobCurrentStartExecutingDate"
)
