package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sns/internal/registry/models"
	"sns/internal/registry/store"
	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
)

const (
	testPrice   = uint64(1_000)
	testReserve = uint64(10_000)
)

var (
	deployer = id.MustParseIdentity("0x00000000000000000000000000000000000000d0")
	admin    = id.MustParseIdentity("0x00000000000000000000000000000000000000a0")
	treasury = id.MustParseIdentity("0x00000000000000000000000000000000000000e0")
	alice    = id.MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob      = id.MustParseIdentity("0x00000000000000000000000000000000000000b2")
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	service *Service
	clock   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := New(s.store,
		WithClock(func() time.Time { return s.clock }),
		WithMinimumReserve(testReserve),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) fund(who id.Identity, amount uint64) {
	s.Require().NoError(s.store.Credit(s.ctx, who, amount))
}

func (s *ServiceSuite) balance(who id.Identity) uint64 {
	bal, err := s.store.Balance(s.ctx, who)
	s.Require().NoError(err)
	return bal
}

func (s *ServiceSuite) initialize() {
	s.fund(deployer, testReserve)
	_, err := s.service.Initialize(s.ctx, deployer, admin, treasury, testPrice)
	s.Require().NoError(err)
}

func (s *ServiceSuite) pendingEvents() []*models.Event {
	events, err := s.store.FetchPending(s.ctx, 0)
	s.Require().NoError(err)
	return events
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestInitialize() {
	s.Run("creates config and funds custody with the reserve", func() {
		s.SetupTest()
		s.fund(deployer, testReserve+5)

		cfg, err := s.service.Initialize(s.ctx, deployer, admin, treasury, testPrice)
		s.Require().NoError(err)
		s.Equal(admin, cfg.Admin)
		s.Equal(treasury, cfg.Treasury)
		s.Equal(testPrice, cfg.PricePerChar)
		s.Equal(testReserve, s.balance(id.CustodyAccount()))
		s.Equal(uint64(5), s.balance(deployer))

		stored, err := s.service.GetConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(cfg.Admin, stored.Admin)
	})

	s.Run("second call fails and leaves config unchanged", func() {
		s.SetupTest()
		s.initialize()
		s.fund(bob, testReserve)

		_, err := s.service.Initialize(s.ctx, bob, bob, bob, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))

		cfg, err := s.service.GetConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(admin, cfg.Admin)
		s.Equal(testPrice, cfg.PricePerChar)
		s.Equal(testReserve, s.balance(bob))
	})

	s.Run("underfunded caller leaves registry uninitialized", func() {
		s.SetupTest()
		s.fund(deployer, testReserve-1)

		_, err := s.service.Initialize(s.ctx, deployer, admin, treasury, testPrice)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))

		_, err = s.service.GetConfig(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))
		s.Equal(testReserve-1, s.balance(deployer))
	})

	s.Run("rejects zero admin", func() {
		s.SetupTest()
		s.fund(deployer, testReserve)
		_, err := s.service.Initialize(s.ctx, deployer, id.ZeroIdentity, treasury, testPrice)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRegister() {
	s.Run("charges per byte and sets expiry and reverse", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 10*testPrice)

		rec, err := s.service.Register(s.ctx, alice, "alice", "hello")
		s.Require().NoError(err)
		s.Equal(alice, rec.Owner)
		s.Equal("hello", rec.Metadata)
		s.Equal(s.clock.Add(models.OneYear), rec.ExpiresAt)
		s.Equal(5*testPrice, s.balance(alice))
		s.Equal(testReserve+5*testPrice, s.balance(id.CustodyAccount()))

		reverse, err := s.service.ReverseLookup(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("alice", reverse.Name)

		events := s.pendingEvents()
		s.Require().Len(events, 2)
		s.Equal(models.EventNameRegistered, events[1].Type)
		s.Equal(5*testPrice, events[1].Amount)
	})

	s.Run("name length is measured in bytes", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 100*testPrice)

		_, err := s.service.Register(s.ctx, alice, strings.Repeat("a", 32), "")
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, alice, strings.Repeat("b", 33), "")
		s.True(dErrors.HasCode(err, dErrors.CodeNameTooLong))

		_, err = s.service.Register(s.ctx, alice, "meta", strings.Repeat("m", 281))
		s.True(dErrors.HasCode(err, dErrors.CodeMetadataTooLong))

		_, err = s.service.Register(s.ctx, alice, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("taken name fails without charging", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 10*testPrice)
		s.fund(bob, 10*testPrice)

		_, err := s.service.Register(s.ctx, alice, "dup", "")
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, bob, "dup", "mine")
		s.True(dErrors.HasCode(err, dErrors.CodeNameTaken))
		s.Equal(10*testPrice, s.balance(bob))

		rec, err := s.service.Resolve(s.ctx, "dup")
		s.Require().NoError(err)
		s.Equal(alice, rec.Owner)
		_, err = s.service.ReverseLookup(s.ctx, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("insufficient funds rolls back everything", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 4*testPrice)
		before := len(s.pendingEvents())

		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		s.Equal(4*testPrice, s.balance(alice))
		s.Equal(testReserve, s.balance(id.CustodyAccount()))

		_, err = s.service.Resolve(s.ctx, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Len(s.pendingEvents(), before)
	})

	s.Run("requires an initialized registry", func() {
		s.SetupTest()
		s.fund(alice, 10*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))
	})

	s.Run("concurrent registrations of one name have one winner", func() {
		s.SetupTest()
		s.initialize()
		const callers = 20

		var wg sync.WaitGroup
		var wins, taken atomic.Int32
		for i := range callers {
			caller := id.Identity{0xc0, byte(i + 1)}
			s.fund(caller, 10*testPrice)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.service.Register(s.ctx, caller, "race", "")
				switch {
				case err == nil:
					wins.Add(1)
				case dErrors.HasCode(err, dErrors.CodeNameTaken):
					taken.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), wins.Load())
		s.Equal(int32(callers-1), taken.Load())
		s.Equal(testReserve+4*testPrice, s.balance(id.CustodyAccount()))
	})
}

func (s *ServiceSuite) TestRenew() {
	s.Run("owner renewal resets expiry from now and charges", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 20*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		s.clock = s.clock.Add(100 * 24 * time.Hour)
		rec, err := s.service.Renew(s.ctx, alice, "alice")
		s.Require().NoError(err)
		s.Equal(s.clock.Add(models.OneYear), rec.ExpiresAt)
		s.Equal(10*testPrice, s.balance(alice))
	})

	s.Run("non owner is rejected and not charged", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 10*testPrice)
		s.fund(bob, 10*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		_, err = s.service.Renew(s.ctx, bob, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(10*testPrice, s.balance(bob))
	})

	s.Run("renewal that would not extend expiry is rejected", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 20*testPrice)
		registered, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		_, err = s.service.Renew(s.ctx, alice, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(15*testPrice, s.balance(alice))

		rec, err := s.service.Resolve(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(registered.ExpiresAt, rec.ExpiresAt)
	})

	s.Run("expired names stay renewable by the owner", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 20*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		s.clock = s.clock.Add(2 * models.OneYear)
		rec, err := s.service.Renew(s.ctx, alice, "alice")
		s.Require().NoError(err)
		s.Equal(models.NameStatusActive, rec.Status(s.clock))
	})

	s.Run("unknown name", func() {
		s.SetupTest()
		s.initialize()
		_, err := s.service.Renew(s.ctx, alice, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("insufficient funds keeps the old expiry", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 5*testPrice)
		registered, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		s.clock = s.clock.Add(time.Hour)
		_, err = s.service.Renew(s.ctx, alice, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))

		rec, err := s.service.Resolve(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(registered.ExpiresAt, rec.ExpiresAt)
	})
}

func (s *ServiceSuite) TestUpdateMetadata() {
	s.SetupTest()
	s.initialize()
	s.fund(alice, 5*testPrice)
	_, err := s.service.Register(s.ctx, alice, "alice", "old")
	s.Require().NoError(err)

	s.Run("owner updates without fee", func() {
		rec, err := s.service.UpdateMetadata(s.ctx, alice, "alice", "new")
		s.Require().NoError(err)
		s.Equal("new", rec.Metadata)
		s.Equal(uint64(0), s.balance(alice))
	})

	s.Run("non owner is rejected", func() {
		_, err := s.service.UpdateMetadata(s.ctx, bob, "alice", "hijack")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		rec, err := s.service.Resolve(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal("new", rec.Metadata)
	})

	s.Run("metadata limit", func() {
		_, err := s.service.UpdateMetadata(s.ctx, alice, "alice", strings.Repeat("m", 280))
		s.NoError(err)
		_, err = s.service.UpdateMetadata(s.ctx, alice, "alice", strings.Repeat("m", 281))
		s.True(dErrors.HasCode(err, dErrors.CodeMetadataTooLong))
	})

	s.Run("ownership is checked before length", func() {
		_, err := s.service.UpdateMetadata(s.ctx, bob, "alice", strings.Repeat("m", 281))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown name", func() {
		_, err := s.service.UpdateMetadata(s.ctx, alice, "ghost", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSetReverse() {
	s.SetupTest()
	s.initialize()
	s.fund(alice, 10*testPrice)
	s.fund(bob, 10*testPrice)
	_, err := s.service.Register(s.ctx, alice, "one", "")
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, alice, "two", "")
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, bob, "bob", "")
	s.Require().NoError(err)

	s.Run("owner points reverse at an owned name", func() {
		rec, err := s.service.SetReverse(s.ctx, alice, "one")
		s.Require().NoError(err)
		s.Equal("one", rec.Name)

		found, err := s.service.ReverseLookup(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("one", found.Name)
	})

	s.Run("name owned by someone else is rejected", func() {
		_, err := s.service.SetReverse(s.ctx, alice, "bob")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		found, err := s.service.ReverseLookup(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("one", found.Name)
	})

	s.Run("unknown name", func() {
		_, err := s.service.SetReverse(s.ctx, alice, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lists names per owner", func() {
		records, err := s.service.ListNames(s.ctx, &alice)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal("one", records[0].Name)
		s.Equal("two", records[1].Name)

		all, err := s.service.ListNames(s.ctx, nil)
		s.Require().NoError(err)
		s.Len(all, 3)
	})
}

func (s *ServiceSuite) TestWithdraw() {
	s.Run("nothing above the reserve", func() {
		s.SetupTest()
		s.initialize()
		_, err := s.service.Withdraw(s.ctx, admin, treasury)
		s.True(dErrors.HasCode(err, dErrors.CodeNoFeesAvailable))
		s.Equal(testReserve, s.balance(id.CustodyAccount()))
		s.Zero(s.balance(treasury))
		s.Len(s.pendingEvents(), 1)
	})

	s.Run("keeps the reserve recorded at initialize after a restart", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 5*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		restarted, err := New(s.store,
			WithClock(func() time.Time { return s.clock }),
			WithMinimumReserve(1),
		)
		s.Require().NoError(err)

		status, err := restarted.CustodyBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(testReserve, status.Reserve)
		s.Equal(5*testPrice, status.Withdrawable)

		amount, err := restarted.Withdraw(s.ctx, admin, treasury)
		s.Require().NoError(err)
		s.Equal(5*testPrice, amount)
		s.Equal(testReserve, s.balance(id.CustodyAccount()))
	})

	s.Run("moves everything above the reserve to treasury", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 7*testPrice)
		_, err := s.service.Register(s.ctx, alice, "seven77", "")
		s.Require().NoError(err)

		quote, err := s.service.CustodyBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(7*testPrice, quote.Withdrawable)

		amount, err := s.service.Withdraw(s.ctx, admin, treasury)
		s.Require().NoError(err)
		s.Equal(7*testPrice, amount)
		s.Equal(testReserve, s.balance(id.CustodyAccount()))
		s.Equal(7*testPrice, s.balance(treasury))

		_, err = s.service.Withdraw(s.ctx, admin, treasury)
		s.True(dErrors.HasCode(err, dErrors.CodeNoFeesAvailable))
	})

	s.Run("rejects non admin and foreign treasury", func() {
		s.SetupTest()
		s.initialize()
		s.fund(alice, 5*testPrice)
		_, err := s.service.Register(s.ctx, alice, "alice", "")
		s.Require().NoError(err)

		_, err = s.service.Withdraw(s.ctx, alice, treasury)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		_, err = s.service.Withdraw(s.ctx, admin, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(testReserve+5*testPrice, s.balance(id.CustodyAccount()))
	})
}

func (s *ServiceSuite) TestCustodyOverflowRollsBack() {
	s.SetupTest()
	s.fund(deployer, testReserve)
	_, err := s.service.Initialize(s.ctx, deployer, admin, treasury, uint64(1)<<63)
	s.Require().NoError(err)

	s.fund(alice, uint64(1)<<63)
	_, err = s.service.Register(s.ctx, alice, "a", "")
	s.Require().NoError(err)

	s.fund(bob, uint64(1)<<63)
	_, err = s.service.Register(s.ctx, bob, "b", "")
	s.True(dErrors.HasCode(err, dErrors.CodeBalanceOverflow))

	s.Equal(uint64(1)<<63, s.balance(bob))
	s.Equal(testReserve+uint64(1)<<63, s.balance(id.CustodyAccount()))
	_, err = s.service.Resolve(s.ctx, "b")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	amount, err := s.service.Withdraw(s.ctx, admin, treasury)
	s.Require().NoError(err)
	s.Equal(uint64(1)<<63, amount)
	s.Equal(testReserve, s.balance(id.CustodyAccount()))
}

func (s *ServiceSuite) TestQuote() {
	s.SetupTest()
	s.initialize()

	fee, err := s.service.Quote(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(3*testPrice, fee)

	_, err = s.service.Quote(s.ctx, strings.Repeat("x", 33))
	s.True(dErrors.HasCode(err, dErrors.CodeNameTooLong))
}

func (s *ServiceSuite) TestZeroPriceRegistersForFree() {
	s.SetupTest()
	s.fund(deployer, testReserve)
	_, err := s.service.Initialize(s.ctx, deployer, admin, treasury, 0)
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, alice, "free", "")
	s.Require().NoError(err)
	s.Equal(testReserve, s.balance(id.CustodyAccount()))
}
