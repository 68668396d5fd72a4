package user

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrUserExists           = errors.New("a user with this username or email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrPermissionDenied     = errors.New("permission denied")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		QueryUsers(ctx context.Context, role Role, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator, logger core.Logger) *Service {
	InitValidators(validate, translator)
	return &Service{
		repo:       repo,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

func (svc *Service) validateStruct(s interface{}) error {
	return core.TranslateValidationErrors(svc.validate.Struct(s), svc.translator)
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		if err == ErrUserExists {
			return core.NewValidationError(err,
				core.FieldError{Field: "username", Error: err.Error()},
				core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) clean(nu *NewUser) {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	svc.clean(&nu)
	if err := svc.validateStruct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Role:      nu.Role,
		StudentID: nu.StudentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// UpdateOrCreate updates the user matching nu's username or email, creating it when none exists.
// An updated user is reactivated with nu's role and password.
func (svc *Service) UpdateOrCreate(ctx context.Context, nu NewUser) (User, error) {
	svc.clean(&nu)
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{nu.Username, nu.Email}})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return svc.Create(ctx, nu)
		}
		return User{}, err
	}

	if err := svc.validateStruct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, usr); err != nil {
		return User{}, err
	}

	usr.Name = nu.Name
	usr.Username = nu.Username
	usr.Email = nu.Email
	usr.Role = nu.Role
	usr.StudentID = nu.StudentID
	usr.IsActive = true
	usr.UpdatedAt = nowFunc().UTC()
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, login string) (User, error) {
	login = core.CleanString(login, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{login}})
}

func (svc *Service) QueryByRole(ctx context.Context, role Role) ([]User, error) {
	return svc.repo.QueryUsers(ctx, role)
}

// Authenticate checks the credentials of an active user and records the login time.
func (svc *Service) Authenticate(ctx context.Context, login, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = nowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	svc.logger.Info("user authenticated", usr)
	return usr, nil
}

// Authorize returns ErrPermissionDenied unless usr holds capability c.
func (svc *Service) Authorize(usr User, c Capability) error {
	if !usr.Can(c) {
		svc.logger.Warn("permission denied", map[string]interface{}{"capability": c, "role": usr.Role}, usr)
		return errors.Wrapf(ErrPermissionDenied, "%s", c)
	}
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	rp.Login = core.CleanString(rp.Login, true /* lower */)
	if err := svc.validateStruct(rp); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{rp.Login}})
	if err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
