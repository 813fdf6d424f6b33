package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/geobeacon/backend/internal/models"
	"github.com/geobeacon/backend/internal/store"
)

// EngineTestSuite exercises Run against a real MySQL instance; it skips
// entirely when one is not reachable, the way the rest of this
// module's repository suites do.
type EngineTestSuite struct {
	suite.Suite
	store *store.Store
	ctx   context.Context
}

func (s *EngineTestSuite) SetupSuite() {
	s.ctx = context.Background()

	st, err := store.New("root@tcp(127.0.0.1:3306)/geobeacon_test", 4, 2)
	require.NoError(s.T(), err)
	s.store = st

	if err := s.store.Ping(s.ctx); err != nil {
		s.T().Skip("MySQL not available for testing: " + err.Error())
	}
}

func (s *EngineTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *EngineTestSuite) insertPendingReport(raw []byte) int64 {
	res, err := s.store.DB().ExecContext(s.ctx, `INSERT INTO reports (state, raw, content_hash) VALUES ('pending', ?, UNHEX(SHA2(?, 256)))`, raw, raw)
	require.NoError(s.T(), err)
	id, err := res.LastInsertId()
	require.NoError(s.T(), err)
	return id
}

// TestRun_IsAtMostOnce verifies that running the engine twice in a row,
// with no new pending reports submitted in between, leaves the
// transmitter estimate exactly as the first run left it: the second
// run finds nothing pending and folds nothing further.
func (s *EngineTestSuite) TestRun_IsAtMostOnce() {
	report := map[string]interface{}{
		"timestamp": 1700000000,
		"position":  map[string]interface{}{"latitude": 43.2965, "longitude": 5.3698},
		"wifiAccessPoints": []map[string]interface{}{
			{"macAddress": "00:11:22:33:44:66", "signalStrength": -55},
		},
	}
	raw, err := json.Marshal(report)
	require.NoError(s.T(), err)
	s.insertPendingReport(raw)

	log := logrus.NewEntry(logrus.New())
	eng := New(s.store, 7, nil, log)

	first, err := eng.Run(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(1, first.ReportsProcessed)
	s.Equal(1, first.TransmittersTouched)

	key := models.WifiTransmitterKey(models.MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x66})
	afterFirst, err := s.store.Lookup(s.ctx, s.store.DB(), key)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), afterFirst)

	second, err := eng.Run(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(0, second.ReportsProcessed, "a second run must not reprocess an already-processed report")

	afterSecond, err := s.store.Lookup(s.ctx, s.store.DB(), key)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), afterSecond)
	s.InDelta(afterFirst.Lat, afterSecond.Lat, 1e-9)
	s.InDelta(afterFirst.TotalWeight, afterSecond.TotalWeight, 1e-9)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
