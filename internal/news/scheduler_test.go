package news

import (
	"testing"
	"time"

	"energy-ai-agent/internal/common/logger"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestDistributedScheduler_TaskOptions(t *testing.T) {
	d := NewDistributedScheduler(nil, asynq.RedisClientOpt{Addr: "localhost:6379"}, 24*time.Hour, logger.NewTestLogger(t))

	got := map[asynq.OptionType]interface{}{}
	for _, opt := range d.taskOptions() {
		got[opt.Type()] = opt.Value()
	}

	assert.Equal(t, 1, got[asynq.MaxRetryOpt])
	assert.Equal(t, 12*time.Hour, got[asynq.UniqueOpt], "one sync per tick across replicas")
}
