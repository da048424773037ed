package serve

import (
	"github.com/spf13/cobra"

	"github.com/studyguide/web/internal/business"
	"github.com/studyguide/web/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"serve",
		"StudyGuide web server",
		"StudyGuide web server renders the pages and keeps the backend sessions of its users in cookies",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
