package grpcservice

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc/credentials"
)

type Config struct {
	Datadir         string
	Port            uint32
	AdminPort       uint32
	NoTLS           bool
	TLSExtraIPs     []string
	TLSExtraDomains []string
}

func (c Config) Validate() error {
	if c.Port == c.AdminPort {
		return fmt.Errorf("grpc and admin ports must differ")
	}
	for _, addr := range []string{c.address(), c.adminAddress()} {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("invalid port: %s", err)
		}
		// nolint:all
		lis.Close()
	}

	if !c.NoTLS {
		tlsDir := c.tlsDatadir()
		tlsKeyExists := pathExists(filepath.Join(tlsDir, tlsKeyFile))
		tlsCertExists := pathExists(filepath.Join(tlsDir, tlsCertFile))
		if !tlsKeyExists && tlsCertExists {
			return fmt.Errorf(
				"found %s file but %s is missing. Please delete %s to make the "+
					"daemon recreating both files in path %s",
				tlsCertFile, tlsKeyFile, tlsCertFile, tlsDir,
			)
		}

		for _, ip := range c.TLSExtraIPs {
			if net.ParseIP(ip) == nil {
				return fmt.Errorf("invalid operator extra ip %s", ip)
			}
		}
	}
	return nil
}

func (c Config) insecure() bool {
	return c.NoTLS
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) adminAddress() string {
	return fmt.Sprintf(":%d", c.AdminPort)
}

func (c Config) tlsDatadir() string {
	return filepath.Join(c.Datadir, tlsFolder)
}

func (c Config) tlsCreds() (credentials.TransportCredentials, error) {
	return credentials.NewServerTLSFromFile(
		filepath.Join(c.tlsDatadir(), tlsCertFile),
		filepath.Join(c.tlsDatadir(), tlsKeyFile),
	)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
