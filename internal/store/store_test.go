package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/geobeacon/backend/internal/models"
)

// StoreTestSuite exercises the transmitter store against a real MySQL
// instance; it skips entirely when one is not reachable, the way the
// rest of this module's repository suites do.
type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupSuite() {
	s.ctx = context.Background()

	store, err := New("root@tcp(127.0.0.1:3306)/geobeacon_test", 4, 2)
	require.NoError(s.T(), err)
	s.store = store

	if err := s.store.Ping(s.ctx); err != nil {
		s.T().Skip("MySQL not available for testing: " + err.Error())
	}
}

func (s *StoreTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreTestSuite) TestUpsertThenLookup_Cell() {
	key := models.CellTransmitterKey(models.CellKey{
		Radio: models.RadioLTE, Country: 208, Network: 10, Area: 1234, CellID: 56789,
	})
	est := models.NewEstimate(43.2965, 5.3698, 70, 4)

	require.NoError(s.T(), s.store.Upsert(s.ctx, s.store.DB(), key, est))

	got, err := s.store.Lookup(s.ctx, s.store.DB(), key)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got)
	s.InDelta(est.Lat, got.Lat, 1e-9)
	s.InDelta(est.TotalWeight, got.TotalWeight, 1e-9)
}

func (s *StoreTestSuite) TestUpsert_IsIdempotent() {
	key := models.WifiTransmitterKey(models.MAC{0xaa, 0xbb, 0xcc, 0, 0, 9})
	est := models.NewEstimate(1, 1, 50, 1)

	require.NoError(s.T(), s.store.Upsert(s.ctx, s.store.DB(), key, est))
	require.NoError(s.T(), s.store.Upsert(s.ctx, s.store.DB(), key, est))

	got, err := s.store.Lookup(s.ctx, s.store.DB(), key)
	require.NoError(s.T(), err)
	s.InDelta(1.0, got.TotalWeight, 1e-9)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
