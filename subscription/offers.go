package subscription

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ReneKroon/ttlcache/v2"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/types"
)

const (
	defaultOfferTTL     = time.Minute
	offerCacheSize      = 1024
	offerLookupTimeout  = 10 * time.Second
	offerCacheKeySymbol = "@"
)

// OfferLister lists the offers and tokens owned by an account at a ledger.
type OfferLister interface {
	OwnedOffers(ctx context.Context, address string, ledgerIndex uint32) ([]*types.OfferDetail, error)
}

// Resolver finds the counterparty of an offer-accept transaction.
type Resolver interface {
	Resolve(ctx context.Context, tx *types.Transaction, candidates []string) (*types.Transaction, bool, error)
}

// OfferResolver resolves accepted offers against the owned offers of the
// candidate accounts as of the ledger before the accept. Offer listings
// are cached per account and ledger.
type OfferResolver struct {
	offers OfferLister
	cache  *ttlcache.Cache
}

// NewOfferResolver returns a resolver caching listings for ttl.
func NewOfferResolver(offers OfferLister, ttl time.Duration) *OfferResolver {
	if ttl <= 0 {
		ttl = defaultOfferTTL
	}
	r := &OfferResolver{offers: offers, cache: ttlcache.NewCache()}
	r.cache.SetLoaderFunction(r.load)
	r.cache.SetCacheSizeLimit(offerCacheSize)
	if err := r.cache.SetTTL(ttl); err != nil {
		logger.Error("set offer cache ttl failed", err)
	}
	return r
}

func offerCacheKey(address string, ledgerIndex uint32) string {
	return address + offerCacheKeySymbol + strconv.FormatUint(uint64(ledgerIndex), 10)
}

func (r *OfferResolver) load(key string) (interface{}, time.Duration, error) {
	sep := strings.LastIndex(key, offerCacheKeySymbol)
	if sep < 0 {
		return nil, 0, fmt.Errorf("bad offer cache key %q", key)
	}
	ledgerIndex, err := strconv.ParseUint(key[sep+1:], 10, 32)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), offerLookupTimeout)
	defer cancel()
	offers, err := r.offers.OwnedOffers(ctx, key[:sep], uint32(ledgerIndex))
	if err != nil {
		return nil, 0, err
	}
	return offers, ttlcache.ItemExpireWithGlobalTTL, nil
}

// Offers returns the offers owned by address at ledgerIndex.
func (r *OfferResolver) Offers(address string, ledgerIndex uint32) ([]*types.OfferDetail, error) {
	v, err := r.cache.Get(offerCacheKey(address, ledgerIndex))
	if err != nil {
		return nil, err
	}
	return v.([]*types.OfferDetail), nil
}

// Resolve returns a copy of tx annotated with the owner of the consumed
// offer as destination. Candidates are scanned in order and the first
// owner of a matching offer wins.
func (r *OfferResolver) Resolve(ctx context.Context, tx *types.Transaction, candidates []string) (*types.Transaction, bool, error) {
	offerID := acceptedOfferID(tx)
	if offerID == "" || tx.LedgerIndex == 0 {
		return nil, false, nil
	}
	for _, address := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		offers, err := r.Offers(address, tx.LedgerIndex-1)
		if err != nil {
			return nil, false, err
		}
		for _, offer := range offers {
			if common.IsEqualIgnoreCase(offer.Index, offerID) {
				annotated := tx.Clone()
				annotated.Destination = address
				annotated.Offer = offer
				return annotated, true, nil
			}
		}
	}
	return nil, false, nil
}

// Close stops the cache janitor.
func (r *OfferResolver) Close() error {
	return r.cache.Close()
}

// isOfferAccept reports whether tx consumes an offer without naming its owner.
func isOfferAccept(tx *types.Transaction) bool {
	switch tx.TransactionType {
	case types.TxURITokenBuy, types.TxNFTokenAcceptOffer:
		return tx.Destination == ""
	}
	return false
}

func acceptedOfferID(tx *types.Transaction) string {
	switch tx.TransactionType {
	case types.TxURITokenBuy:
		return tx.URITokenID
	case types.TxNFTokenAcceptOffer:
		return tx.NFTokenSellOffer
	}
	return ""
}
