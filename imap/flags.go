package imap

import "github.com/emersion/go-imap"

// copyableFlags returns the flags that should be set on a copy of a message
func copyableFlags(imapFlags []string) []string {
	outputFlags := make([]string, 0, len(imapFlags))

	for _, flag := range imapFlags {
		switch flag {
		case imap.RecentFlag:
			// NOTE - \Recent is managed by the server and cannot be set by a client
			continue
		case imap.DeletedFlag:
			// A message pending expunge in the source must not
			// disappear from the target on its next expunge
			continue
		case "":
			continue
		}
		outputFlags = append(outputFlags, flag)
	}

	return outputFlags
}
