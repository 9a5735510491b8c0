package console

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	runCmds
	dataCmds
	memoryCmds
	stackCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

// commandGroupDescriptions sets the order of the help listing.
var commandGroupDescriptions = []commandGroupDescription{
	{"Viewing the call stack", stackCmds},
	{"Viewing memory", memoryCmds},
	{"Running the program", runCmds},
	{"Viewing program variables", dataCmds},
	{"Other commands", otherCmds},
}
