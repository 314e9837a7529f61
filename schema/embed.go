package schema

import _ "embed"

// DuetV1Schema contains the JSON schema for duet configuration files.
//
//go:embed duet.v1.json
var DuetV1Schema []byte
