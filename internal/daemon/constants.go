package daemon

import "time"

const (
	ClientDeadline     = 30 * time.Second
	DaemonStartTimeout = 5 * time.Second
	DaemonPollInterval = 100 * time.Millisecond
	ShutdownTimeout    = 30 * time.Second

	stateDirName = ".interactive"
	socketName   = "interactive.sock"
	lockName     = "daemon.lock"
)

const (
	ActionPing  = "ping"
	ActionStart = "start"
	ActionWait  = "wait"
	ActionSend  = "send"
	ActionExit  = "exit"
	ActionList  = "list"
	ActionInfo  = "info"
)
