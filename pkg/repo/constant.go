package repo

const (
	AppName = "AxiomAA"

	// CfgFileName is the default config name
	CfgFileName = "config.toml"

	// defaultRepoRoot is the path to the default config dir location.
	defaultRepoRoot = "~/.axiom-aa"

	// rootPathEnvVar is the environment variable used to change the path root.
	rootPathEnvVar = "AXIOM_AA_PATH"

	OwnerKeystoreFileName = "owner-keystore.json"

	SessionKeysDirName = "session-keys"

	DefaultKeystorePassword = "2023@axiomesh"

	StorageDirName = "storage"

	SessionStoreName = "sessions"
)

const (
	KVStorageTypeLeveldb = "leveldb"
	KVStorageTypeMemory  = "memory"

	SponsorModeRemote = "remote"
	SponsorModeLocal  = "local"
)
