package tzbaker

// Class is the CLA byte of every command.
const Class byte = 0x80

// INSTRUCTIONS

const (
	InsVersion               byte = 0x00
	InsAuthorizeBaking       byte = 0x01
	InsGetPublicKey          byte = 0x02
	InsPromptPublicKey       byte = 0x03
	InsSign                  byte = 0x04
	InsReset                 byte = 0x06
	InsQueryAuthKey          byte = 0x07
	InsQueryMainHWM          byte = 0x08
	InsGit                   byte = 0x09
	InsSetup                 byte = 0x0a
	InsQueryAllHWM           byte = 0x0b
	InsDeauthorize           byte = 0x0c
	InsQueryAuthKeyWithCurve byte = 0x0d
	InsSignWithHash          byte = 0x0f
)

// P1 of the SIGN packets
const (
	P1First byte = 0x00 // carries the path
	P1Next  byte = 0x01 // carries message bytes
	P1Last  byte = 0x80 // set on the final packet
)

// Application version reported by VERSION. The leading byte marks the
// baking application.
const (
	AppKind      byte = 1
	VersionMajor byte = 2
	VersionMinor byte = 4
	VersionPatch byte = 7
)

// Commit is reported by GIT. Overridden at link time.
var Commit = "dev"

var instructionNames = map[byte]string{
	InsVersion:               "version",
	InsAuthorizeBaking:       "authorize_baking",
	InsGetPublicKey:          "get_public_key",
	InsPromptPublicKey:       "prompt_public_key",
	InsSign:                  "sign",
	InsReset:                 "reset",
	InsQueryAuthKey:          "query_auth_key",
	InsQueryMainHWM:          "query_main_hwm",
	InsGit:                   "git",
	InsSetup:                 "setup",
	InsQueryAllHWM:           "query_all_hwm",
	InsDeauthorize:           "deauthorize",
	InsQueryAuthKeyWithCurve: "query_auth_key_with_curve",
	InsSignWithHash:          "sign_with_hash",
}

func instructionName(ins byte) string {
	if name, ok := instructionNames[ins]; ok {
		return name
	}
	return "unknown"
}
