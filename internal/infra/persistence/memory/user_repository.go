package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"

	"github.com/google/uuid"
)

type userRepository struct {
	scope scope
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	var found *entity.User
	err := r.scope.run(func(t *tables) error {
		user, ok := t.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		found = &user

		return nil
	})

	return found, err
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	email = entity.NormalizeEmail(email)

	return r.findOne(func(u *entity.User) bool { return u.Email == email })
}

func (r *userRepository) FindByResetToken(_ context.Context, token string, now time.Time) (*entity.User, error) {
	return r.findOne(func(u *entity.User) bool { return token != "" && u.ResetTokenValid(token, now) })
}

func (r *userRepository) findOne(match func(*entity.User) bool) (*entity.User, error) {
	var found *entity.User
	err := r.scope.run(func(t *tables) error {
		for _, user := range t.users {
			if match(&user) {
				found = &user
				return nil
			}
		}

		return repository.ErrUserNotFound
	})

	return found, err
}

func (r *userRepository) Create(_ context.Context, user *entity.User) error {
	return r.scope.run(func(t *tables) error {
		user.Email = entity.NormalizeEmail(user.Email)
		for _, existing := range t.users {
			if existing.Email == user.Email {
				return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
			}
		}

		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		now := r.scope.now()
		user.CreatedAt = now
		user.UpdatedAt = now
		t.users[user.ID] = *user

		return nil
	})
}

func (r *userRepository) mutate(id uuid.UUID, fn func(u *entity.User)) error {
	return r.scope.run(func(t *tables) error {
		user, ok := t.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		fn(&user)
		user.UpdatedAt = r.scope.now()
		t.users[id] = user

		return nil
	})
}

func (r *userRepository) UpdateProfile(_ context.Context, id uuid.UUID, update *entity.UserProfileUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	return r.mutate(id, func(u *entity.User) {
		assign(&u.FirstName, update.FirstName)
		assign(&u.LastName, update.LastName)
		assign(&u.Phone, update.Phone)
		assign(&u.DateOfBirth, update.DateOfBirth)
		assign(&u.Gender, update.Gender)
		assign(&u.Address, update.Address)
		assign(&u.Specialty, update.Specialty)
		assign(&u.LicenseNumber, update.LicenseNumber)
		assign(&u.InsuranceID, update.InsuranceID)
		assign(&u.EmergencyContact, update.EmergencyContact)
		assign(&u.EmergencyPhone, update.EmergencyPhone)
	})
}

func (r *userRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.mutate(id, func(u *entity.User) {
		u.PasswordHash = passwordHash
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
	})
}

func (r *userRepository) RedeemResetToken(_ context.Context, id uuid.UUID, token string, now time.Time, passwordHash string) error {
	return r.scope.run(func(t *tables) error {
		user, ok := t.users[id]
		if !ok || !user.ResetTokenValid(token, now) {
			return repository.ErrResetTokenRedeemed
		}
		user.PasswordHash = passwordHash
		user.PasswordResetToken = ""
		user.PasswordResetExpires = nil
		user.UpdatedAt = r.scope.now()
		t.users[id] = user

		return nil
	})
}

func (r *userRepository) SetResetToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	return r.mutate(id, func(u *entity.User) {
		u.PasswordResetToken = token
		u.PasswordResetExpires = &expires
	})
}

func (r *userRepository) SetTwoFactorSecret(_ context.Context, id uuid.UUID, secret string) error {
	return r.mutate(id, func(u *entity.User) { u.TwoFactorSecret = secret })
}

func (r *userRepository) EnableTwoFactor(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(u *entity.User) { u.TwoFactorEnabled = true })
}

func (r *userRepository) DisableTwoFactor(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(u *entity.User) {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = ""
	})
}

func (r *userRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.mutate(id, func(u *entity.User) { u.IsActive = active })
}

func (r *userRepository) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(id, func(u *entity.User) { u.LastLogin = &at })
}

func (r *userRepository) ListActiveDoctors(_ context.Context) ([]*entity.User, error) {
	users := r.collect(func(u *entity.User) bool { return u.Role == entity.RoleDoctor && u.IsActive })
	slices.SortFunc(users, byName)

	return users, nil
}

func (r *userRepository) List(_ context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	users := r.collect(func(u *entity.User) bool {
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.FirstName), search) &&
			!strings.Contains(strings.ToLower(u.LastName), search) {
			return false
		}

		return true
	})
	slices.SortFunc(users, func(a, b *entity.User) int { return b.CreatedAt.Compare(a.CreatedAt) })

	return limit(users, filter.Limit), nil
}

func (r *userRepository) Stats(_ context.Context) (*entity.UserStats, error) {
	stats := &entity.UserStats{}
	err := r.scope.run(func(t *tables) error {
		for _, u := range t.users {
			stats.Total++
			if u.IsActive {
				stats.Active++
			}
			switch u.Role {
			case entity.RoleAdmin:
				stats.Admins++
			case entity.RoleDoctor:
				stats.Doctors++
			case entity.RolePatient:
				stats.Patients++
			}
		}

		return nil
	})

	return stats, err
}

func (r *userRepository) ListPatients(_ context.Context) ([]*entity.PatientSummary, error) {
	return r.patientSummaries(uuid.Nil), nil
}

func (r *userRepository) ListPatientsForDoctor(_ context.Context, doctorID uuid.UUID) ([]*entity.PatientSummary, error) {
	return r.patientSummaries(doctorID), nil
}

// patientSummaries lists patients with their visit history. A non-nil doctorID
// restricts both the patients and the history to that doctor.
func (r *userRepository) patientSummaries(doctorID uuid.UUID) []*entity.PatientSummary {
	var summaries []*entity.PatientSummary
	_ = r.scope.run(func(t *tables) error {
		for _, u := range t.users {
			if u.Role != entity.RolePatient {
				continue
			}

			summary := &entity.PatientSummary{}
			for _, a := range t.appointments {
				if a.PatientID != u.ID || (doctorID != uuid.Nil && a.DoctorID != doctorID) {
					continue
				}
				summary.AppointmentCount++
				if a.Date > summary.LastVisit {
					summary.LastVisit = a.Date
				}
			}

			if doctorID != uuid.Nil && (summary.AppointmentCount == 0 || !u.IsActive) {
				continue
			}

			patient := u
			summary.Patient = &patient
			summaries = append(summaries, summary)
		}

		return nil
	})

	slices.SortFunc(summaries, func(a, b *entity.PatientSummary) int { return byName(a.Patient, b.Patient) })

	return summaries
}

func (r *userRepository) PurgeExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	err := r.scope.run(func(t *tables) error {
		for id, u := range t.users {
			if u.PasswordResetExpires != nil && u.PasswordResetExpires.Before(now) {
				u.PasswordResetToken = ""
				u.PasswordResetExpires = nil
				t.users[id] = u
				purged++
			}
		}

		return nil
	})

	return purged, errors.WithStack(err)
}

func (r *userRepository) collect(match func(*entity.User) bool) []*entity.User {
	var users []*entity.User
	_ = r.scope.run(func(t *tables) error {
		for _, u := range t.users {
			if match(&u) {
				user := u
				users = append(users, &user)
			}
		}

		return nil
	})

	return users
}

func byName(a, b *entity.User) int {
	return cmp.Or(cmp.Compare(a.LastName, b.LastName), cmp.Compare(a.FirstName, b.FirstName))
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}

	return items
}
