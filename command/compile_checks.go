package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthorizeMessage]     = (*AuthorizeCommand)(nil)
	_ gocmd.Commander[SetCredentialMessage] = (*SetCredentialCommand)(nil)
	_ gocmd.Commander[ForgetMessage]        = (*ForgetCommand)(nil)
)
