package cmd

const (
	defaultMgmtDataDir   = "/var/lib/netbird-updates/"
	defaultMgmtConfigDir = "/etc/netbird-updates"
	defaultLogDir        = "/var/log/netbird-updates"

	defaultMgmtConfig = defaultMgmtConfigDir + "/updates.json"
	defaultLogFile    = defaultLogDir + "/updates.log"

	envPrefix = "NB_UPDATES_"
)
