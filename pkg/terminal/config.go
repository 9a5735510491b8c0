package terminal

import (
	"fmt"
	"strings"

	"github.com/go-delve/tinydbg/pkg/config"
)

func configureCmd(t *Term, args string) error {
	switch args {
	case "-list":
		return config.ConfigureList(t.stdout, t.conf, "yaml")
	case "-save":
		return config.SaveConfig(t.conf)
	case "":
		return fmt.Errorf("wrong number of arguments to \"config\"")
	default:
		if !strings.Contains(args, " ") {
			out := config.ConfigureListByName(t.conf, args, "yaml")
			if out == "" {
				return fmt.Errorf("%q is not a configuration parameter", args)
			}
			fmt.Fprint(t.stdout, out)
			return nil
		}
		if err := config.ConfigureSet(t.conf, args); err != nil {
			return err
		}
		if cmds, err := t.consoleNames(); err == nil {
			t.names = cmds
		}
		return nil
	}
}
