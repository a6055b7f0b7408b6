package swapdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"go.etcd.io/bbolt"
)

var (
	// dbFileName is the default file name of the swap database.
	dbFileName = "swaps.db"

	// swapBucketKey is a bucket that contains all submarine swaps that
	// are currently pending or completed.
	//
	// maps: swapID -> serialized Swap
	swapBucketKey = []byte("swaps")

	// reverseSwapBucketKey is a bucket that contains all reverse swaps
	// that are currently pending or completed.
	//
	// maps: swapID -> serialized ReverseSwap
	reverseSwapBucketKey = []byte("reverse-swaps")

	// channelCreationBucketKey is a bucket that contains the channel
	// creation side records.
	//
	// maps: swapID -> serialized ChannelCreation
	channelCreationBucketKey = []byte("channel-creations")

	// swapHashIndexKey is an index bucket over the preimage hashes of
	// submarine swaps.
	//
	// maps: preimageHash -> swapID
	swapHashIndexKey = []byte("swaps-preimage-index")

	// reverseSwapHashIndexKey is an index bucket over the preimage hashes
	// of reverse swaps.
	//
	// maps: preimageHash -> swapID
	reverseSwapHashIndexKey = []byte("reverse-swaps-preimage-index")
)

// fileExists returns true if the file exists, and false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// boltSwapStore stores swap data in boltdb.
type boltSwapStore struct {
	db *bbolt.DB
}

// A compile-time check to ensure that boltSwapStore implements the Store
// interface.
var _ Store = (*boltSwapStore)(nil)

// NewBoltSwapStore creates a new swap store in the given directory.
func NewBoltSwapStore(dbPath string) (*boltSwapStore, error) {
	// If the target path for the swap store doesn't exist, then we'll
	// create it now before we proceed.
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	// Now that we know that path exists, we'll open up bolt, which
	// implements our default swap store.
	path := filepath.Join(dbPath, dbFileName)
	bdb, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	// We'll create all the buckets we need if this is the first time we're
	// starting up. If they already exist, then these calls will be noops.
	err = bdb.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			swapBucketKey, reverseSwapBucketKey,
			channelCreationBucketKey, swapHashIndexKey,
			reverseSwapHashIndexKey,
		}
		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &boltSwapStore{db: bdb}, nil
}

// AddSwap persists a newly created submarine swap.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) AddSwap(swap *Swap) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := putRow(tx.Bucket(swapBucketKey), swap.ID, swap, true)
		if err != nil {
			return err
		}

		return putHashIndex(
			tx.Bucket(swapHashIndexKey), swap.PreimageHash,
			swap.ID,
		)
	})
}

// GetSwap returns the first swap matching the filter.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) GetSwap(filter SwapFilter) (*Swap, error) {
	swaps, err := s.GetSwaps(filter)
	if err != nil {
		return nil, err
	}
	if len(swaps) == 0 {
		return nil, ErrSwapNotFound
	}

	return swaps[0], nil
}

// GetSwaps returns all swaps matching the filter.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) GetSwaps(filter SwapFilter) ([]*Swap, error) {
	var swaps []*Swap

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(swapBucketKey)

		appendMatch := func(raw []byte) error {
			swap := &Swap{}
			if err := json.Unmarshal(raw, swap); err != nil {
				return err
			}
			if filter.matches(swap) {
				swaps = append(swaps, swap)
			}

			return nil
		}

		// Fast paths when filtering on the primary key or on the
		// preimage hash index.
		switch {
		case filter.ID != "":
			raw := bucket.Get([]byte(filter.ID))
			if raw == nil {
				return nil
			}

			return appendMatch(raw)

		case filter.PreimageHash != "":
			id := tx.Bucket(swapHashIndexKey).Get(
				[]byte(filter.PreimageHash),
			)
			if id == nil {
				return nil
			}

			raw := bucket.Get(id)
			if raw == nil {
				return nil
			}

			return appendMatch(raw)
		}

		return bucket.ForEach(func(_, raw []byte) error {
			return appendMatch(raw)
		})
	})
	if err != nil {
		return nil, err
	}

	return swaps, nil
}

// SetInvoice records the invoice of a swap and moves it to StatusInvoiceSet.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) SetInvoice(swap *Swap, invoice string, invoiceAmount,
	expectedAmount, fee btcutil.Amount, acceptZeroConf bool) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(swapBucketKey)

		stored, err := getSwapRow(bucket, swap.ID)
		if err != nil {
			return err
		}

		stored.Invoice = invoice
		stored.InvoiceAmount = invoiceAmount
		stored.ExpectedAmount = expectedAmount
		stored.Fee = fee
		stored.AcceptZeroConf = acceptZeroConf
		stored.Status = StatusInvoiceSet

		// Reflect the write in the caller's copy.
		*swap = *stored

		return putRow(bucket, stored.ID, stored, false)
	})
}

// UpdateSwapStatus rewrites the status of a swap.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) UpdateSwapStatus(id string, status Status,
	failureReason string) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(swapBucketKey)

		stored, err := getSwapRow(bucket, id)
		if err != nil {
			return err
		}

		stored.Status = status
		if failureReason != "" {
			stored.FailureReason = failureReason
		}

		return putRow(bucket, stored.ID, stored, false)
	})
}

// AddReverseSwap persists a newly created reverse swap.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) AddReverseSwap(swap *ReverseSwap) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := putRow(
			tx.Bucket(reverseSwapBucketKey), swap.ID, swap, true,
		)
		if err != nil {
			return err
		}

		return putHashIndex(
			tx.Bucket(reverseSwapHashIndexKey), swap.PreimageHash,
			swap.ID,
		)
	})
}

// GetReverseSwap returns the first reverse swap matching the filter.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) GetReverseSwap(filter ReverseSwapFilter) (*ReverseSwap,
	error) {

	swaps, err := s.GetReverseSwaps(filter)
	if err != nil {
		return nil, err
	}
	if len(swaps) == 0 {
		return nil, ErrSwapNotFound
	}

	return swaps[0], nil
}

// GetReverseSwaps returns all reverse swaps matching the filter.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) GetReverseSwaps(filter ReverseSwapFilter) (
	[]*ReverseSwap, error) {

	var swaps []*ReverseSwap

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(reverseSwapBucketKey)

		appendMatch := func(raw []byte) error {
			swap := &ReverseSwap{}
			if err := json.Unmarshal(raw, swap); err != nil {
				return err
			}
			if filter.matches(swap) {
				swaps = append(swaps, swap)
			}

			return nil
		}

		// Fast paths when filtering on the primary key or on the
		// preimage hash index.
		switch {
		case filter.ID != "":
			raw := bucket.Get([]byte(filter.ID))
			if raw == nil {
				return nil
			}

			return appendMatch(raw)

		case filter.PreimageHash != "":
			id := tx.Bucket(reverseSwapHashIndexKey).Get(
				[]byte(filter.PreimageHash),
			)
			if id == nil {
				return nil
			}

			raw := bucket.Get(id)
			if raw == nil {
				return nil
			}

			return appendMatch(raw)
		}

		return bucket.ForEach(func(_, raw []byte) error {
			return appendMatch(raw)
		})
	})
	if err != nil {
		return nil, err
	}

	return swaps, nil
}

// AddChannelCreation persists a channel creation side record.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) AddChannelCreation(
	channelCreation *ChannelCreation) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		return putRow(
			tx.Bucket(channelCreationBucketKey),
			channelCreation.SwapID, channelCreation, true,
		)
	})
}

// GetChannelCreation returns the channel creation record of a swap.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) GetChannelCreation(swapID string) (*ChannelCreation,
	error) {

	var channelCreation *ChannelCreation

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(channelCreationBucketKey).Get([]byte(swapID))
		if raw == nil {
			return ErrSwapNotFound
		}

		channelCreation = &ChannelCreation{}
		return json.Unmarshal(raw, channelCreation)
	})
	if err != nil {
		return nil, err
	}

	return channelCreation, nil
}

// SetNodePublicKey records the destination node of the swap invoice.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) SetNodePublicKey(channelCreation *ChannelCreation,
	nodePublicKey string) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelCreationBucketKey)

		raw := bucket.Get([]byte(channelCreation.SwapID))
		if raw == nil {
			return ErrSwapNotFound
		}

		stored := &ChannelCreation{}
		if err := json.Unmarshal(raw, stored); err != nil {
			return err
		}

		stored.NodePublicKey = nodePublicKey
		*channelCreation = *stored

		return putRow(bucket, stored.SwapID, stored, false)
	})
}

// Close closes the underlying database.
//
// NOTE: Part of the swapdb.Store interface.
func (s *boltSwapStore) Close() error {
	return s.db.Close()
}

// putHashIndex records the preimage hash to id mapping of a new row. Preimage
// hashes are unique per swap kind, so writing over an existing entry is
// rejected.
func putHashIndex(bucket *bbolt.Bucket, preimageHash, id string) error {
	if preimageHash == "" {
		return nil
	}

	if bucket.Get([]byte(preimageHash)) != nil {
		return ErrSwapExists
	}

	return bucket.Put([]byte(preimageHash), []byte(id))
}

// getSwapRow reads and decodes a single swap row.
func getSwapRow(bucket *bbolt.Bucket, id string) (*Swap, error) {
	raw := bucket.Get([]byte(id))
	if raw == nil {
		return nil, ErrSwapNotFound
	}

	swap := &Swap{}
	if err := json.Unmarshal(raw, swap); err != nil {
		return nil, err
	}

	return swap, nil
}

// putRow encodes and writes a row. When mustNotExist is set, writing over an
// existing row is rejected so that creation paths cannot override state.
func putRow(bucket *bbolt.Bucket, id string, row interface{},
	mustNotExist bool) error {

	if id == "" {
		return fmt.Errorf("empty row id")
	}

	if mustNotExist && bucket.Get([]byte(id)) != nil {
		return ErrSwapExists
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}

	return bucket.Put([]byte(id), raw)
}
