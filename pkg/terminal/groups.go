package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	payloadCmds
	dataCmds
	sessionCmds
	snapshotCmds
	scriptCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Inspecting payloads", payloadCmds},
	{"Viewing program variables and memory", dataCmds},
	{"Examining the session", sessionCmds},
	{"Recording and sharing snapshots", snapshotCmds},
	{"Extending the terminal", scriptCmds},
	{"Other commands", otherCmds},
}
