package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

type DSN struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SSLRootCert     string
	ApplicationName string
	Extra           map[string]string
}

func (d *DSN) String() string {
	var fields []string
	if d.Host != "" {
		fields = append(fields, fmt.Sprintf("host=%s", d.Host))
	}
	if d.Port != 0 {
		fields = append(fields, fmt.Sprintf("port=%s", strconv.Itoa(d.Port)))
	}
	if d.User != "" {
		fields = append(fields, fmt.Sprintf("user=%s", d.User))
	}
	if d.Password != "" {
		fields = append(fields, fmt.Sprintf("password=%s", d.Password))
	}
	if d.DBName != "" {
		fields = append(fields, fmt.Sprintf("dbname=%s", d.DBName))
	}
	if d.SSLMode != "" {
		fields = append(fields, fmt.Sprintf("sslmode=%s", d.SSLMode))
	}
	if d.SSLRootCert != "" {
		fields = append(fields, fmt.Sprintf("sslrootcert=%s", d.SSLRootCert))
	}
	if d.ApplicationName != "" {
		fields = append(fields, fmt.Sprintf("application_name=%s", d.ApplicationName))
	} else {
		fields = append(fields, "application_name=courselab-server")
	}
	for key, value := range d.Extra {
		fields = append(fields, fmt.Sprintf("%s=%s", key, value))
	}
	return strings.Join(fields, " ")
}
