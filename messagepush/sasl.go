package messagepush

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// ConfigureSASL enables SASL_SSL on a sarama config when the credentials and the
// root CA are all set. It leaves the config untouched otherwise.
func ConfigureSASL(config *sarama.Config, username, password, rootCAPath string) error {
	if username == "" || password == "" || rootCAPath == "" {
		return nil
	}
	rootCA, err := os.ReadFile(rootCAPath)
	if err != nil {
		return errors.Wrap(err, "read root CA cert fail")
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(rootCA); !ok {
		return errors.New("no certificate found in root CA file")
	}

	config.Net.SASL.Enable = true
	config.Net.SASL.User = username
	config.Net.SASL.Password = password
	config.Net.TLS.Enable = true
	config.Net.TLS.Config = &tls.Config{RootCAs: caCertPool, MinVersion: tls.VersionTLS12}
	return nil
}
