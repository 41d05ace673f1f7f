package common

const (
	// PrivateFileMode is applied to every file holding vault or credential data.
	PrivateFileMode = 0o600
	// PrivateDirMode is applied to the data directory.
	PrivateDirMode = 0o700
)
