// internal/domain/user/address_service.go
package user

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrAddressNotFound is returned when an address is missing or not the
// user's to see
var ErrAddressNotFound = errors.New("address not found")

// AddressService handles the user's address book
type AddressService struct {
	db *gorm.DB
}

// NewAddressService creates a new address service
func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// CreateAddressRequest carries a new address
type CreateAddressRequest struct {
	Label         string `json:"label"`
	RecipientName string `json:"recipient_name" binding:"required"`
	Phone         string `json:"phone"`
	AddressLine1  string `json:"address_line1" binding:"required"`
	AddressLine2  string `json:"address_line2"`
	City          string `json:"city" binding:"required"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	IsDefault     bool   `json:"is_default"`
}

// GetUserAddresses lists the user's addresses, default first
func (s *AddressService) GetUserAddresses(ctx context.Context, userID uint) ([]Address, error) {
	var addresses []Address
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").Find(&addresses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

// GetAddress retrieves one address, enforcing ownership
func (s *AddressService) GetAddress(ctx context.Context, userID, addressID uint) (*Address, error) {
	var address Address
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve address: %w", err)
	}
	return &address, nil
}

// UserOwnsAddress reports whether the address belongs to the user. Checkout
// validates delivery targets through this.
func (s *AddressService) UserOwnsAddress(ctx context.Context, userID, addressID uint) (bool, error) {
	_, err := s.GetAddress(ctx, userID, addressID)
	if errors.Is(err, ErrAddressNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAddress adds an address to the user's book
func (s *AddressService) CreateAddress(ctx context.Context, userID uint, req *CreateAddressRequest) (*Address, error) {
	address := Address{
		UserID:        userID,
		Label:         req.Label,
		RecipientName: req.RecipientName,
		Phone:         req.Phone,
		AddressLine1:  req.AddressLine1,
		AddressLine2:  req.AddressLine2,
		City:          req.City,
		State:         req.State,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		IsDefault:     req.IsDefault,
	}
	if address.Country == "" {
		address.Country = "CO"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := s.unsetDefaultAddresses(tx, userID); err != nil {
				return err
			}
		}

		var count int64
		tx.Model(&Address{}).Where("user_id = ?", userID).Count(&count)
		if count == 0 {
			address.IsDefault = true
		}

		return tx.Create(&address).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return &address, nil
}

// UpdateAddress edits an address, enforcing ownership
func (s *AddressService) UpdateAddress(ctx context.Context, userID, addressID uint, req *CreateAddressRequest) (*Address, error) {
	address, err := s.GetAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsDefault && !address.IsDefault {
			if err := s.unsetDefaultAddresses(tx, userID); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"label":          req.Label,
			"recipient_name": req.RecipientName,
			"phone":          req.Phone,
			"address_line1":  req.AddressLine1,
			"address_line2":  req.AddressLine2,
			"city":           req.City,
			"state":          req.State,
			"postal_code":    req.PostalCode,
			"is_default":     req.IsDefault,
		}
		if req.Country != "" {
			updates["country"] = req.Country
		}
		return tx.Model(address).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}
	return s.GetAddress(ctx, userID, addressID)
}

// DeleteAddress removes an address, enforcing ownership
func (s *AddressService) DeleteAddress(ctx context.Context, userID, addressID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", addressID, userID).Delete(&Address{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete address: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// SetDefaultAddress marks one address as the default
func (s *AddressService) SetDefaultAddress(ctx context.Context, userID, addressID uint) error {
	address, err := s.GetAddress(ctx, userID, addressID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.unsetDefaultAddresses(tx, userID); err != nil {
			return err
		}
		return tx.Model(address).Update("is_default", true).Error
	})
}

func (s *AddressService) unsetDefaultAddresses(tx *gorm.DB, userID uint) error {
	return tx.Model(&Address{}).Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
