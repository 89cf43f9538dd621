package app

import "lichsu-rewards-service/internal/domain"

// Catalog is the static, read-only list of redeemable vouchers.
type Catalog struct {
	templates []domain.VoucherTemplate
	byID      map[string]domain.VoucherTemplate
}

func NewCatalog(templates []domain.VoucherTemplate) *Catalog {
	c := &Catalog{
		templates: append([]domain.VoucherTemplate(nil), templates...),
		byID:      make(map[string]domain.VoucherTemplate, len(templates)),
	}
	for _, t := range templates {
		c.byID[t.ID] = t
	}
	return c
}

// DefaultCatalog returns the Momo and VNPay vouchers offered by the site.
func DefaultCatalog() *Catalog {
	return NewCatalog([]domain.VoucherTemplate{
		{ID: "momo-10k", Provider: domain.ProviderMomo, Name: "Voucher Momo 10.000đ", Description: "Nạp 10.000đ vào ví Momo", FaceValue: 10000, PointsCost: 100, ImageRef: "/images/vouchers/momo.png"},
		{ID: "momo-20k", Provider: domain.ProviderMomo, Name: "Voucher Momo 20.000đ", Description: "Nạp 20.000đ vào ví Momo", FaceValue: 20000, PointsCost: 180, ImageRef: "/images/vouchers/momo.png"},
		{ID: "momo-50k", Provider: domain.ProviderMomo, Name: "Voucher Momo 50.000đ", Description: "Nạp 50.000đ vào ví Momo", FaceValue: 50000, PointsCost: 400, ImageRef: "/images/vouchers/momo.png"},
		{ID: "vnpay-20k", Provider: domain.ProviderVNPay, Name: "Voucher VNPay 20.000đ", Description: "Giảm 20.000đ khi thanh toán qua VNPay", FaceValue: 20000, PointsCost: 180, ImageRef: "/images/vouchers/vnpay.png"},
		{ID: "vnpay-50k", Provider: domain.ProviderVNPay, Name: "Voucher VNPay 50.000đ", Description: "Giảm 50.000đ khi thanh toán qua VNPay", FaceValue: 50000, PointsCost: 400, ImageRef: "/images/vouchers/vnpay.png"},
		{ID: "vnpay-100k", Provider: domain.ProviderVNPay, Name: "Voucher VNPay 100.000đ", Description: "Giảm 100.000đ khi thanh toán qua VNPay", FaceValue: 100000, PointsCost: 750, ImageRef: "/images/vouchers/vnpay.png"},
	})
}

// All returns every template in catalog order.
func (c *Catalog) All() []domain.VoucherTemplate {
	return append([]domain.VoucherTemplate(nil), c.templates...)
}

func (c *Catalog) Get(id string) (domain.VoucherTemplate, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ByProvider filters the catalog; an empty provider or "all" returns everything.
func (c *Catalog) ByProvider(provider domain.Provider) []domain.VoucherTemplate {
	if provider == "" || provider == "all" {
		return c.All()
	}
	out := make([]domain.VoucherTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		if t.Provider == provider {
			out = append(out, t)
		}
	}
	return out
}
