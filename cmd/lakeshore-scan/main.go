// Command lakeshore-scan lists the Lake Shore instruments attached over
// USB, with the port each one answers on.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/theckman/yacspin"
	"go.bug.st/serial/enumerator"

	"github.com/lakeshorecryotronics/go-driver/comm"
)

// models maps USB product IDs to model names.
var models = map[uint16]string{
	0x0100: "Model 121 current source",
	0x0103: "Model 155 precision source",
	0x0204: "Model 224 temperature monitor",
	0x0205: "Model 240 input module",
	0x0300: "Model 335 temperature controller",
	0x0301: "Model 336 temperature controller",
	0x0305: "Model 372 AC resistance bridge",
	0x0401: "Model 425 gaussmeter",
	0x0405: "F41 teslameter",
	0x0406: "F71 teslameter",
	0x0601: "Model 643 electromagnet power supply",
	0x0602: "Model 648 electromagnet power supply",
	0x0704: "M91 FastHall measurement controller",
}

func main() {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[11],
		Suffix:          " scanning serial ports",
		StopCharacter:   "✓",
		SuffixAutoColon: true,
	})
	if err == nil {
		spinner.Start()
	}

	ports, scanErr := enumerator.GetDetailedPortsList()

	if err == nil {
		spinner.Stop()
	}
	if scanErr != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", scanErr)
		os.Exit(1)
	}

	found := 0
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		vid, err := strconv.ParseUint(port.VID, 16, 16)
		if err != nil || uint16(vid) != comm.LakeShoreVID {
			continue
		}
		pid, err := strconv.ParseUint(port.PID, 16, 16)
		if err != nil {
			continue
		}
		name, known := models[uint16(pid)]
		if !known {
			name = fmt.Sprintf("unknown instrument (PID %04X)", pid)
		}
		fmt.Printf("%-40s %-16s serial %s\n", name, port.Name, port.SerialNumber)
		found++
	}
	if found == 0 {
		fmt.Println("no instruments found")
	}
}
