package internal

import (
	"encoding/json"
	"fmt"
	"os"
)

func Pprint(i interface{}) {
	bytes, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(bytes))
}

type Secrets struct {
	Db   DbSecrets   `json:"db"`
	Amqp AmqpSecrets `json:"amqp"`
}

type DbSecrets struct {
	Host      string `json:"host"`
	User      string `json:"user"`
	Port      string `json:"port"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	EnableSsl bool   `json:"enableSsl"`
}

func (t DbSecrets) ToConnectionStr() string {
	x := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		t.Host, t.Port, t.User, t.Password, t.Database)
	if !t.EnableSsl {
		x += " sslmode=disable"
	}
	return x
}

type AmqpSecrets struct {
	Url        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routingKey"`
}

func LoadSecrets() (*Secrets, error) {
	secretsFile := "secrets.json"
	if os.Getenv("PROPVAL_ENV") == "dev" {
		secretsFile = "secrets-dev.json"
	} else if os.Getenv("PROPVAL_ENV") == "test" {
		secretsFile = "secrets-test.json"
	}

	bytes, err := os.ReadFile(secretsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
	}

	secrets := Secrets{}
	if err := json.Unmarshal(bytes, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}

	return &secrets, nil
}

func FloatPointer(f float64) *float64 {
	return &f
}
