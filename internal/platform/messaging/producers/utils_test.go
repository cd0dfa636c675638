package producers

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopicAdmin struct {
	partitions []kafka.Partition
	readErr    error
	reads      int
	created    []kafka.TopicConfig
	createErr  error
}

func (f *fakeTopicAdmin) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	f.reads++
	return f.partitions, f.readErr
}

func (f *fakeTopicAdmin) CreateTopics(topics ...kafka.TopicConfig) error {
	f.created = append(f.created, topics...)
	return f.createErr
}

func TestCreateKafkaTopicIfNotExists(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("ExistingTopic", func(t *testing.T) {
		admin := &fakeTopicAdmin{partitions: []kafka.Partition{{Topic: "t", ID: 0}}}
		require.NoError(t, createKafkaTopicIfNotExists(admin, "t", 3, 1, logger, 0))
		assert.Empty(t, admin.created)
		assert.Equal(t, 1, admin.reads)
	})

	t.Run("MissingTopicIsCreatedWithDefaults", func(t *testing.T) {
		admin := &fakeTopicAdmin{readErr: errors.New("unknown topic")}
		require.NoError(t, createKafkaTopicIfNotExists(admin, "t", 0, 0, logger, 0))
		assert.Equal(t, 5, admin.reads)
		require.Len(t, admin.created, 1)
		assert.Equal(t, kafka.TopicConfig{Topic: "t", NumPartitions: 1, ReplicationFactor: 1}, admin.created[0])
	})

	t.Run("CreationFailure", func(t *testing.T) {
		admin := &fakeTopicAdmin{createErr: errors.New("not controller")}
		err := createKafkaTopicIfNotExists(admin, "t", 3, 1, logger, 0)
		assert.Error(t, err)
	})
}
