package app

import (
	"fmt"

	"github.com/phillarmonic/figlet/figletlib"
)

// ShowVersion prints the essence banner and version information.
func ShowVersion(version, commit, date string) error {
	loader := figletlib.NewEmbededLoader()
	font, err := loader.GetFontByName("standard")
	if err != nil {
		return err
	}

	startColor, _ := figletlib.ParseColor("#00FF95")
	endColor, _ := figletlib.ParseColor("#00C2FF")
	gradientConfig := figletlib.ColorConfig{
		Mode:       figletlib.ColorModeGradient,
		StartColor: startColor,
		EndColor:   endColor,
	}

	fmt.Println("")
	figletlib.PrintColoredMsg("essence", font, 80, font.Settings(), "left", gradientConfig)

	fmt.Println("a small POSIX-flavored interactive shell")
	fmt.Println()
	fmt.Printf("Version %s\n", version)
	if commit != "unknown" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" {
		fmt.Printf("built: %s\n", date)
	}
	return nil
}
