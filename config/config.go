package config

import (
	"os"
	"strconv"

	"github.com/iidesho/bragi/sbragi"
	"github.com/joho/godotenv"
)

const defaultBatchSize = 100

type Config struct {
	// ReplicaId uniquely names this replica within the system. Collisions
	// across sites corrupt emitter identities, so pick globally unique ids.
	ReplicaId string
	// BatchSize caps the number of events a replicator reads per transfer.
	BatchSize int
	// CryptoKey, when set, enables payload encryption in the codec.
	CryptoKey sbragi.RedactedString
}

// Load reads configuration from the environment, after loading
// local_override.properties or .env when present. Missing files are normal.
func Load() (c Config) {
	err := godotenv.Load("local_override.properties")
	if err != nil {
		sbragi.WithoutEscalation().WithError(err).
			Debug("loading local_override.properties file", "file", "local_override.properties")
		err = godotenv.Load(".env")
		if err != nil {
			sbragi.WithoutEscalation().WithError(err).
				Debug("loading .env file", "file", ".env")
		}
	}
	c.ReplicaId = os.Getenv("replica.id")
	if c.ReplicaId == "" {
		hn, err := os.Hostname()
		sbragi.WithError(err).Fatal("getting hostname for default replica id")
		c.ReplicaId = hn
	}
	c.BatchSize = defaultBatchSize
	if bs := os.Getenv("replication.batch.size"); bs != "" {
		size, err := strconv.Atoi(bs)
		if !sbragi.WithError(err).Error("parsing replication batch size", "value", bs) {
			c.BatchSize = size
		}
	}
	c.CryptoKey = sbragi.RedactedString(os.Getenv("crypto.key"))
	return
}
