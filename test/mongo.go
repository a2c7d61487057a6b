// Package test provides docker container helpers for the integration tests.
package test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mongoPort = 27017

// MongoContainer wraps a running MongoDB container.
type MongoContainer struct {
	testcontainers.Container
}

// ConnectionString returns the mongodb:// URI of the running container.
func (c *MongoContainer) ConnectionString(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, nat.Port(fmt.Sprintf("%d/tcp", mongoPort)))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), nil
}

// StartMongoContainer starts a MongoDB container for testing.
func StartMongoContainer(ctx context.Context) (*MongoContainer, error) {
	exposedPort := fmt.Sprintf("%d/tcp", mongoPort)

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{exposedPort},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(nat.Port(exposedPort)),
				),
			},
			Started: true,
		})
	if err != nil {
		return nil, err
	}
	return &MongoContainer{Container: container}, nil
}

// RandomDatabaseName returns a random database name, so tests sharing a
// container do not step on each other.
func RandomDatabaseName() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "test_" + hex.EncodeToString(b)
}
